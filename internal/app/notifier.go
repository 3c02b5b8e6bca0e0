package app

import (
	"context"

	"github.com/bobmcallan/dayk/internal/common"
	"github.com/bobmcallan/dayk/internal/interfaces"
	"github.com/bobmcallan/dayk/internal/models"
)

// logNotifier reports run summaries to the log. Message delivery is left to external tooling.
type logNotifier struct {
	logger *common.Logger
}

// NewLogNotifier returns a Notifier that logs the summary.
func NewLogNotifier(logger *common.Logger) interfaces.Notifier {
	return &logNotifier{logger: logger}
}

func (n *logNotifier) Notify(_ context.Context, market string, stats models.RunStats) error {
	n.logger.Info().
		Str("market", market).
		Int("total", stats.Total).
		Int("success", stats.Success).
		Int("fail", stats.Fail).
		Int("pending", stats.Pending).
		Int("empty", stats.Empty).
		Int("failed", stats.Failed).
		Str("completeness", formatRate(stats.SuccessRate())).
		Msg("Run summary")
	return nil
}
