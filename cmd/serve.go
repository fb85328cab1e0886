package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/BerniceZTT/welfare_end/controllers"
	"github.com/BerniceZTT/welfare_end/middleware"
	"github.com/BerniceZTT/welfare_end/routes"
	"github.com/BerniceZTT/welfare_end/service"
	"github.com/BerniceZTT/welfare_end/utils"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动HTTP服务",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	utils.Logger.Info().Msg("开始系统初始化...")
	app, err := buildApplication(ctx, cfg)
	if err != nil {
		return fmt.Errorf("系统初始化失败: %w", err)
	}
	utils.Logger.Info().Msg("系统初始化完成")

	if cfg.FollowUp.OverdueSyncEnabled {
		service.ScheduleDailyTaskAt(ctx, cfg.FollowUp.OverdueSyncHour, 0, 0, service.OverdueSyncTask(app.followUps, time.Now))
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      newRouter(app),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		utils.Logger.Info().Msgf("服务器启动，监听端口: %d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			app.close(context.Background())
			return fmt.Errorf("启动服务器失败: %w", err)
		}
	case <-ctx.Done():
	}

	utils.Logger.Info().Msg("正在关闭服务器...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		utils.Logger.Error().Err(err).Msg("服务器关闭异常")
	}
	app.close(shutdownCtx)

	utils.Logger.Info().Msg("服务器已优雅关闭")
	return nil
}

func newRouter(app *application) *gin.Engine {
	router := gin.New()

	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())
	router.Use(middleware.CORS(app.cfg.CORS.Origins))
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.OperationLoggerMiddleware(app.opLogs))

	routes.RegisterRoutes(router, routes.Handlers{
		FollowUps: controllers.NewFollowUpController(app.engine, app.stats, app.cfg.FollowUp.Location()),
		Records:   controllers.NewRecordController(app.records),
		Bindings:  app.bindings,
		DBStatus:  app.dbStatus,
	})
	router.NoRoute(middleware.NoRoute)
	return router
}
