package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/codingSofie/partykit/internal/config"
	"github.com/codingSofie/partykit/internal/game"
	"github.com/codingSofie/partykit/internal/store"
	"github.com/codingSofie/partykit/internal/ws"
	staticserver "github.com/codingSofie/partykit/static"
)

const version = "v1.0.0"

func main() {
	var (
		showHelp    = flag.Bool("help", false, "Show help message")
		showVersion = flag.Bool("version", false, "Show version information")
		portFlag    = flag.String("port", "", "Port to listen on (overrides PORT env var)")
	)
	flag.BoolVar(showHelp, "h", false, "Show help message (shorthand)")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	flag.Parse()

	if *showHelp {
		fmt.Printf(`Partykit - Real-time party buzzer server

Usage: %s [options]

Options:
  -h, --help      Show this help message
  -v, --version   Show version information
  --port PORT     Port to listen on (default: 8080 or PORT env var)

Environment Variables:
  PORT             Port to listen on (default: 8080)
  DATABASE_URL     Postgres DSN; leave empty for the in-memory store
  ALLOWED_ORIGINS  Comma-separated CORS origins for the frontend
  MAX_PLAYERS      Room capacity (default: 50)
  ROOM_TIMEOUT     Inactivity timeout before rooms are evicted (default: 30m)
  SWEEP_INTERVAL   How often the eviction sweep runs (default: 5m)
  GRACE_DELAY      Delay between round lock and result broadcast (default: 500ms)
`, os.Args[0])
		return
	}

	if *showVersion {
		fmt.Printf("Partykit %s\n", version)
		return
	}

	_ = godotenv.Load()
	cfg := config.FromEnv()

	port := *portFlag
	if port == "" {
		port = cfg.Port
	}

	// zerolog setup (human-friendly console)
	zerolog.TimeFieldFormat = time.RFC3339
	cw := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	log.Logger = log.Output(cw)

	var st store.Store
	if cfg.DatabaseURL != "" {
		gs, err := store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("connect database")
		}
		st = gs
		log.Info().Msg("using postgres store")
	} else {
		st = store.NewMemoryStore()
		log.Info().Msg("using in-memory store")
	}

	// Gin setup with custom logger (skip /socket.io noise)
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.Request.URL.Path
		if strings.HasPrefix(path, "/socket.io") {
			return
		}
		log.Info().Str("path", path).Int("status", c.Writer.Status()).Dur("dur", time.Since(start)).Msg("http")
	})
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type"},
		AllowCredentials: true,
	}))

	sock := ws.New()
	svc := game.NewService(st, sock, clockwork.NewRealClock(), game.Config{
		MaxPlayers:    cfg.MaxPlayers,
		GraceDelay:    cfg.GraceDelay,
		RoomTimeout:   cfg.RoomTimeout,
		SweepInterval: cfg.SweepInterval,
	})
	sock.SetService(svc)
	io := sock.Mount(r)
	defer io.Close()

	go svc.RunSweeper(context.Background())

	// Healthcheck
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true, "time": time.Now().UTC()})
	})

	// API info
	r.GET("/api", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"name":    "Partykit API",
			"version": version,
			"endpoints": gin.H{
				"POST /api/create-room": "create a room with a chosen password",
			},
			"websocket": "/socket.io",
		})
	})

	// Create a room ahead of joining it
	type createRoomReq struct {
		PlayerName string `json:"player_name"`
		Password   string `json:"password"`
	}
	r.POST("/api/create-room", func(c *gin.Context) {
		var req createRoomReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
			return
		}
		if n := len([]rune(req.PlayerName)); n < 1 || n > 20 {
			c.JSON(http.StatusBadRequest, gin.H{"error": game.ErrInvalidName.Error()})
			return
		}
		room, err := svc.Registry().Create(c.Request.Context(), req.Password)
		if err != nil {
			status := http.StatusBadRequest
			if game.Code(err) == "internal_error" {
				status = http.StatusInternalServerError
			}
			c.JSON(status, gin.H{"error": err.Error(), "code": game.Code(err)})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "room_id": room.ID})
	})

	// Serve frontend (if embedded build is present) for all other routes
	r.NoRoute(func(c *gin.Context) {
		staticserver.Handler().ServeHTTP(c.Writer, c.Request)
	})

	log.Info().Str("port", port).Msg("listening")
	if err := r.Run(":" + port); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}
