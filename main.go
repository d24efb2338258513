package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"uscview/config"
	"uscview/handlers"
	"uscview/logging"
	"uscview/middleware"
	"uscview/services"
	"uscview/utils"
)

func main() {
	// 1. Config
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format, os.Stdout)

	log.Info().
		Str("server", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)).
		Str("controller", cfg.Controller.BaseURL).
		Str("topology_id", cfg.Controller.TopologyID).
		Bool("redis", cfg.Redis.Enabled).
		Int("refresh_interval", cfg.Polling.RefreshInterval).
		Msg("Configuration loaded")

	// 2. Services
	geo := utils.NewGeoResolver(cfg.GeoIP.DBPath, cfg.GeoIP.APIFallback)
	defer geo.Close()

	display := services.NewDisplayStore(cfg)

	discordBot, err := services.NewDiscordBotService(cfg.Discord.Token, cfg.Discord.ChannelID, display.Current)
	if err != nil {
		log.Warn().Err(err).Msg("Discord bot initialization failed, Discord notifications disabled")
		discordBot = nil
	}
	defer discordBot.Close()

	client := services.NewControllerClient(cfg)
	alarms := services.NewAlarmService(cfg, discordBot)
	topology := services.NewTopologyService(geo)
	channels := services.NewChannelService(cfg, client, display, alarms)

	display.Start()
	alarms.Start()
	channels.Start()

	// 3. Web Server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.LoggerMiddleware())
	e.Use(middleware.RecoverMiddleware())
	e.Use(middleware.CORSMiddleware(cfg.Server.AllowedOrigins))

	handlers.NewHandler(cfg, channels, topology, display, alarms).Register(e)

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	go func() {
		log.Info().Str("addr", serverAddr).Str("controller", client.Endpoint()).Msg("Server running")
		if err := e.Start(serverAddr); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("shutting down the server")
		}
	}()

	// 4. Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Graceful shutdown initiated")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	channels.Stop()
	alarms.Stop()
	display.Stop()

	if err := e.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}
	log.Info().Msg("Server exited cleanly")
}
