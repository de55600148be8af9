package engineobs

import (
	"context"
	"time"

	"factor-trading-bot/internal/interfaces"
	"factor-trading-bot/internal/logger"
	"factor-trading-bot/internal/trace"
	"factor-trading-bot/internal/types"
)

type observableEngine struct {
	engine interfaces.Engine
}

var _ interfaces.Engine = (*observableEngine)(nil)

func Wrap(eng interfaces.Engine) interfaces.Engine {
	return &observableEngine{
		engine: eng,
	}
}

func (oe *observableEngine) Cycle(ctx context.Context) (*types.CycleReport, error) {
	ctx, span := trace.StartSpan(ctx, "engine.Cycle")
	defer span.End()

	start := time.Now()
	logger.InfoSkip(ctx, 1, "Starting decision cycle")

	report, err := oe.engine.Cycle(ctx)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Decision cycle failed", err,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return report, err
	}

	if n := report.Count(types.ActionError); n > 0 {
		logger.WarnSkip(ctx, 1, "Decision cycle had per-symbol errors", "errors", n)
	}

	logger.InfoSkip(ctx, 1, "Decision cycle completed",
		"symbols", len(report.Outcomes),
		"submitted", report.Count(types.ActionSubmitted),
		"rejected", report.Count(types.ActionRejected),
		"held", report.Count(types.ActionHeldPosition),
		"no_signal", report.Count(types.ActionNoSignal),
		"errors", report.Count(types.ActionError),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return report, nil
}
