// internal/service/campaign/compiler.go
package campaign

import (
	"context"

	domain "smartdeals-service/internal/domain/campaign"
	"smartdeals-service/internal/pkg/clock"
	"smartdeals-service/internal/pkg/events"

	"go.uber.org/zap"
)

// Compiler resolves dynamic product selections (random, smart) into concrete
// product ID lists when a campaign activates. Static selections pass through
// untouched.
type Compiler struct {
	repo     Repository
	selector ProductSelector
	clock    clock.Clock
	logger   *zap.Logger
}

func NewCompiler(repo Repository, selector ProductSelector, clk clock.Clock, logger *zap.Logger) *Compiler {
	return &Compiler{repo: repo, selector: selector, clock: clk, logger: logger}
}

// Subscribe registers the compiler on the events that require a fresh
// product set: activation and the periodic rotation notice.
func (cp *Compiler) Subscribe(bus *events.Bus) {
	bus.Subscribe(events.TypeCampaignActivated, cp.onCompileDue)
	bus.Subscribe(events.TypeCampaignRotateDue, cp.onCompileDue)
}

func (cp *Compiler) onCompileDue(ctx context.Context, ev events.Event) error {
	c, err := cp.repo.FindByID(ctx, ev.CampaignID)
	if err != nil {
		return err
	}
	return cp.Compile(ctx, c)
}

// Compile re-resolves the product set if the campaign's selection is stale.
func (cp *Compiler) Compile(ctx context.Context, c *domain.Campaign) error {
	if !c.NeedsRecompilation() {
		return nil
	}

	ids, err := cp.selector.SelectProducts(ctx, c)
	if err != nil {
		cp.logger.Warn("product selection failed",
			zap.Int64("campaign_id", c.ID),
			zap.String("selection_type", string(c.SelectionType)),
			zap.Error(err),
		)
		return err
	}

	c.SetProductIDs(ids)
	c.MarkCompiled(string(c.SelectionType), cp.clock.Now())
	if err := cp.repo.Save(ctx, c); err != nil {
		return err
	}

	cp.logger.Info("campaign products compiled",
		zap.Int64("campaign_id", c.ID),
		zap.Int("products", len(ids)),
	)
	return nil
}
