package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/BerniceZTT/welfare_end/models"

	"github.com/spf13/cobra"
)

var (
	statsModule     string
	statsAssignedTo string
	statsRecordType string
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "输出跟进统计(JSON)",
	RunE: func(cmd *cobra.Command, args []string) error {
		scope := models.StatsScope{
			Module:     models.Module(statsModule),
			AssignedTo: statsAssignedTo,
			RecordType: models.RecordType(statsRecordType),
		}
		if scope.Module != "" && !scope.Module.IsValid() {
			return fmt.Errorf("未知的模块: %s", scope.Module)
		}
		if scope.RecordType != "" && !scope.RecordType.IsValid() {
			return fmt.Errorf("未知的记录类型: %s", scope.RecordType)
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		app, err := buildApplication(ctx, cfg)
		if err != nil {
			return err
		}
		defer app.close(context.Background())

		stats, err := app.stats.Stats(ctx, scope)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	},
}

func init() {
	statsCmd.Flags().StringVar(&statsModule, "module", "", "按模块统计 (Health, Education, Social Justice)")
	statsCmd.Flags().StringVar(&statsAssignedTo, "assigned-to", "", "按负责人统计")
	statsCmd.Flags().StringVar(&statsRecordType, "record-type", "", "按记录类型统计")
}
