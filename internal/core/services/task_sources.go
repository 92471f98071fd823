package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lorrc/workload-insights/internal/core/domain"
	apperrors "github.com/lorrc/workload-insights/internal/core/errors"
	"github.com/lorrc/workload-insights/internal/core/ports"
)

// taskSourceChain tries task sources in priority order.
type taskSourceChain struct {
	sources []ports.TaskSource
	logger  *slog.Logger
}

var _ ports.TaskSource = (*taskSourceChain)(nil)

// FirstAvailable composes sources so the first one able to serve a query
// answers it. A source reporting ErrStrategyUnavailable passes the query on;
// any other error ends the call.
func FirstAvailable(logger *slog.Logger, sources ...ports.TaskSource) ports.TaskSource {
	return &taskSourceChain{
		sources: sources,
		logger:  logger.With("component", "task_source_chain"),
	}
}

func (c *taskSourceChain) Name() string {
	names := make([]string, 0, len(c.sources))
	for _, s := range c.sources {
		names = append(names, s.Name())
	}
	return "first_available(" + strings.Join(names, ",") + ")"
}

func (c *taskSourceChain) ActiveTasks(ctx context.Context, q ports.ActiveTaskQuery) ([]domain.TaskWorkload, error) {
	for _, source := range c.sources {
		tasks, err := source.ActiveTasks(ctx, q)
		if err == nil {
			return tasks, nil
		}
		if !errors.Is(err, apperrors.ErrStrategyUnavailable) {
			return nil, err
		}
		c.logger.DebugContext(ctx, "task source unavailable, trying next",
			"source", source.Name(),
			"error", err,
		)
	}
	return nil, fmt.Errorf("%w: no task source could serve the query", apperrors.ErrStrategyUnavailable)
}
