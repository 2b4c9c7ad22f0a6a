package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/abiosoft/ishell"
	"github.com/asdine/storm/v3"
	"github.com/caarlos0/env/v6"
	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/makerclub/gorover/comms"
	"github.com/makerclub/gorover/onboard"
	"github.com/makerclub/gorover/onboard/hardware"
	"gobot.io/x/gobot/platforms/raspi"
)

type EnvConfig struct {
	JWT_ISSUER string `env:"ROVER_UUID" envDefault:"DEV"`
	DEBUG      bool   `env:"DEBUG" envDefault:"0"`
	SRCDIR     string `env:"SRCDIR" envDefault:"."`
	HTMLDIR    string `env:"HTMLDIR" envDefault:"./dashboard/dist/"`
	DB         *storm.DB
	Conductor  *comms.Conductor
	Simulated  bool
}

var (
	ENV *EnvConfig
)

func init() {
	ENV = new(EnvConfig)
	env.Parse(ENV)

	// account store lives next to the binary; the rover has no other
	// persistent state
	dbFile, _ := filepath.Abs("./tmp/rover.db")
	dir := filepath.Dir(dbFile)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		os.Mkdir(dir, 0755)
	}

	db, err := openDb(dbFile)
	if err != nil {
		panic(err)
	}
	ENV.DB = db
}

func main() {
	simulated := flag.Bool("sim", false, "Run against the simulated chassis")
	port := flag.String("port", "", "ip:port for the dashboard HTTP server (overrides config)")
	flag.Parse()

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.RedirectSlashes)
	r.Use(middleware.Recoverer) // make sure this is last

	defer ENV.DB.Close() // close database when finished

	filename, err := filepath.Abs(ENV.SRCDIR + "/rover_config.yaml")
	if err != nil {
		panic(err)
	}
	f, err := os.Open(filename)
	if err != nil {
		panic(fmt.Sprintf("Unable to open config file: %v", err))
	}

	config, err := onboard.LoadConfig(f)
	f.Close()
	if err != nil {
		panic(fmt.Sprintf("Unable to load config: %v", err))
	}

	ENV.Simulated = *simulated

	var rover onboard.Rover
	if ENV.Simulated {
		println("Creating simulated chassis")
		rover = onboard.NewSimulatedRover()
	} else {
		adaptor := raspi.NewAdaptor()
		if err := adaptor.Connect(); err != nil {
			panic(fmt.Sprintf("Unable to connect GPIO adaptor: %v", err))
		}
		gpio := onboard.NewGPIORover(config, adaptor)
		gpio.SetLED(true)
		rover = gpio
	}

	loop := onboard.NewControlLoop(rover, config.Avoidance)
	go loop.Run()
	defer loop.Shutdown()

	// phone app listener
	appServer := comms.NewAppServer(loop, rover)
	appAddr := config.Listen.App
	if appAddr == "" {
		appAddr = ":5000"
	}
	go func() {
		if err := appServer.ListenAndServe(appAddr); err != nil {
			log.Printf("app listener: %v", err)
		}
	}()
	defer appServer.Close()

	ENV.Conductor = &comms.Conductor{
		Name:  config.Name,
		Rover: rover,
		Loop:  loop,
	}

	// TURN credentials are optional; STUN-only works inside the classroom
	if tw, err := comms.NewTwilioClient(); err == nil {
		if ice, err := tw.IceServers(); err == nil {
			ENV.Conductor.SetICEServers(ice)
		} else {
			log.Printf("twilio: %v", err)
		}
	}

	go ENV.Conductor.UpdateClients()

	//---
	// Create a local shell
	//---
	{
		driveCommands := map[string]hardware.DriveCommand{
			"forward":  hardware.Forward,
			"backward": hardware.Backward,
			"left":     hardware.TurnLeft,
			"right":    hardware.TurnRight,
			"stop":     hardware.Stop,
		}

		shell := ishell.New()
		shell.Println("GoRover development shell")
		shell.ShowPrompt(true)
		shell.AddCmd(&ishell.Cmd{
			Name: "createsuperuser",
			Help: "createsuperuser <email> <password>",
			Func: func(c *ishell.Context) {
				c.ShowPrompt(false)
				defer c.ShowPrompt(true)

				var email string
				if len(c.Args) >= 1 {
					email = c.Args[0]
				} else {
					c.Print("Email: ")
					email = c.ReadLine()
				}

				var password string
				if len(c.Args) >= 2 {
					password = c.Args[1]
				} else {
					c.Print("Password: ")
					password = c.ReadPassword()
				}

				user := &User{
					Email: email,
					Name:  email,
					Admin: true,
				}
				user.SetPassword([]byte(password))
				if err := ENV.DB.Save(user); err != nil {
					panic(err)
				}

				c.Println("Superuser created")
			},
		})

		shell.AddCmd(&ishell.Cmd{
			Name: "drive",
			Help: "drive <forward|backward|left|right|stop>",
			Func: func(c *ishell.Context) {
				if len(c.Args) != 1 {
					c.Err(fmt.Errorf("usage: drive <direction>"))
					return
				}
				cmd, ok := driveCommands[c.Args[0]]
				if !ok {
					c.Err(fmt.Errorf("unknown direction %s", c.Args[0]))
					return
				}
				loop.Offer(cmd)
			},
		})

		shell.AddCmd(&ishell.Cmd{
			Name: "stop",
			Help: "stop the motors",
			Func: func(c *ishell.Context) {
				loop.Offer(hardware.Stop)
			},
		})

		shell.AddCmd(&ishell.Cmd{
			Name: "sonar",
			Help: "read the distance sensor",
			Func: func(c *ishell.Context) {
				c.Printf("%.1fcm\n", rover.DistanceCM())
			},
		})

		shell.AddCmd(&ishell.Cmd{
			Name: "state",
			Help: "print rover and loop state",
			Func: func(c *ishell.Context) {
				c.Printf("%+v %+v\n", rover.State(), loop.Status())
			},
		})

		shell.AddCmd(&ishell.Cmd{
			Name: "demo",
			Help: "demo <square|spin|figure8>",
			Func: func(c *ishell.Context) {
				if len(c.Args) != 1 {
					c.Err(fmt.Errorf("usage: demo <name>"))
					return
				}
				b, err := onboard.LookupBehavior(c.Args[0])
				if err != nil {
					c.Err(err)
					return
				}
				c.Printf("Running %s\n", b.Name)
				if err := b.Run(rover, nil); err != nil {
					c.Err(err)
				}
			},
		})

		// Start an instance of the shell so it can be controlled from the CLI
		go shell.Start()
	}

	//---
	// Build the API routes
	//---
	r.Route("/api", func(r chi.Router) {
		// login
		r.Post("/login", Login)

		r.Route("/", func(r chi.Router) {
			// Seek, verify and validate JWT tokens
			r.Use(ValidateJWT)

			r.Get("/status", func(w http.ResponseWriter, req *http.Request) {
				render.JSON(w, req, comms.NewStatePayload(config.Name, rover, loop))
			})

			r.Get("/refresh_token", JWTRefresh)
		})
	})

	// Add websocket routes
	r.Route("/ws", func(r chi.Router) {
		if !ENV.DEBUG {
			// Enable JWT validation in production
			r.Use(ValidateJWT)
		} else {
			fmt.Println("Running in debug mode. Authentication disabled.")
		}

		r.Get("/echo", EchoHandler)
		r.Get("/signal", WebRTCSignalHandler)
	})

	// add static base routes
	FileServer(r, "/", http.Dir(ENV.HTMLDIR))

	httpAddr := *port
	if httpAddr == "" {
		httpAddr = config.Listen.HTTP
	}
	if httpAddr == "" {
		httpAddr = "0.0.0.0:80"
	}

	fmt.Printf("%s ready on wifi %q, app port %s, dashboard %s\n",
		config.Name, config.Wifi.SSID, appAddr, httpAddr)
	if err := http.ListenAndServe(httpAddr, r); err != nil {
		log.Fatal(err)
	}
}

func openDb(dbFile string) (db *storm.DB, err error) {
	db, err = storm.Open(dbFile)
	if err != nil {
		return
	}

	// call inits for each type
	if err := db.Init(&User{}); err != nil {
		return nil, err
	}

	return
}

// FileServer conveniently sets up a http.FileServer handler to serve
// static files from a http.FileSystem.
func FileServer(r chi.Router, path string, root http.FileSystem) {
	if strings.ContainsAny(path, "{}*") {
		panic("FileServer does not permit URL parameters.")
	}

	fs := http.StripPrefix(path, http.FileServer(root))

	if path != "/" && path[len(path)-1] != '/' {
		r.Get(path, http.RedirectHandler(path+"/", 301).ServeHTTP)
		path += "/"
	}
	path += "*"

	r.Get(path, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fs.ServeHTTP(w, r)
	}))
}
