package cmd

import (
	"fmt"
	"os"

	"github.com/BerniceZTT/welfare_end/config"
	"github.com/BerniceZTT/welfare_end/utils"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "welfare-end",
	Short: "福利个案跟进服务",
	// 不带子命令时启动服务
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd, args)
	},
	SilenceUsage: true,
}

// Execute 执行命令行
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd, statsCmd)
}

// loadConfig 加载配置并初始化日志
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	utils.InitLogger(cfg.Debug)
	utils.SetJWTSecret(cfg.JWTKey)
	return cfg, nil
}
