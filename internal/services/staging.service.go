package services

import (
	"net/url"
	"time"

	"go.uber.org/zap"

	"scopeboard/internal/models"
)

// GlobalPicker is the picker target of the dashboard-wide range; any other
// target is a panel id.
const GlobalPicker = ""

// RefreshNotifier receives one event per committed change
type RefreshNotifier interface {
	NotifyRefresh(event models.RefreshEvent)
}

// ApplyResult describes what an Apply committed
type ApplyResult struct {
	Applied   bool             `json:"applied"`
	Range     models.TimeRange `json:"range"`
	Refreshed []string         `json:"refreshed"`
}

// StagingController holds the staged value of every time picker. Staging
// and discarding never touch committed state; Apply commits, updates the
// URL mirror and emits one refresh event in a single step.
type StagingController struct {
	dashboard *models.Dashboard
	hierarchy *Hierarchy
	resolver  *TimeResolver
	staged    map[string]models.TimeRange
	params    url.Values
	notifier  RefreshNotifier
	logger    *zap.Logger
}

func NewStagingController(d *models.Dashboard, h *Hierarchy, tr *TimeResolver, notifier RefreshNotifier, logger *zap.Logger) *StagingController {
	if logger == nil {
		logger = zap.NewNop()
	}
	sc := &StagingController{
		dashboard: d,
		hierarchy: h,
		resolver:  tr,
		staged:    make(map[string]models.TimeRange),
		notifier:  notifier,
		logger:    logger,
	}
	sc.params = EncodeTimeParams(d.GlobalTime, tr.IndividualRanges())
	return sc
}

// Stage records a pending selection for target
func (sc *StagingController) Stage(target string, r models.TimeRange) error {
	if err := sc.checkTarget(target); err != nil {
		return err
	}
	if err := r.Validate(); err != nil {
		return err
	}
	sc.staged[target] = r
	return nil
}

// Staged returns the pending selection of target, if any
func (sc *StagingController) Staged(target string) (models.TimeRange, bool) {
	r, ok := sc.staged[target]
	return r, ok
}

// Committed returns the value currently driving queries for target
func (sc *StagingController) Committed(target string) (models.TimeRange, error) {
	if target == GlobalPicker {
		return sc.dashboard.GlobalTime, nil
	}
	if err := sc.checkTarget(target); err != nil {
		return models.TimeRange{}, err
	}
	return sc.resolver.EffectiveRange(target, sc.dashboard.GlobalTime)
}

// Discard drops the pending selection; committed state is untouched
func (sc *StagingController) Discard(target string) {
	delete(sc.staged, target)
}

// DiscardAll drops every pending selection
func (sc *StagingController) DiscardAll() {
	sc.staged = make(map[string]models.TimeRange)
}

// Apply promotes the staged value of target. Applying nothing, or a value
// equal to the committed one, clears the stage and refreshes nobody.
func (sc *StagingController) Apply(target string) (ApplyResult, error) {
	r, ok := sc.staged[target]
	if !ok {
		committed, err := sc.Committed(target)
		return ApplyResult{Range: committed}, err
	}
	if err := sc.checkTarget(target); err != nil {
		return ApplyResult{}, err
	}

	committed, err := sc.Committed(target)
	if err != nil {
		return ApplyResult{}, err
	}
	delete(sc.staged, target)
	if committed.Equal(r) {
		return ApplyResult{Range: r}, nil
	}

	var (
		refreshed []string
		cause     models.RefreshCause
	)
	if target == GlobalPicker {
		sc.dashboard.GlobalTime = r
		refreshed = sc.resolver.FollowersOfGlobal(sc.hierarchy.Panels())
		cause = models.CauseGlobalTime
	} else {
		if err := sc.resolver.commitPanelRange(target, r); err != nil {
			return ApplyResult{}, err
		}
		refreshed = []string{target}
		cause = models.CausePanelTime
	}
	sc.params = EncodeTimeParams(sc.dashboard.GlobalTime, sc.resolver.IndividualRanges())

	sc.logger.Info("time range applied",
		zap.String("dashboard", sc.dashboard.ID),
		zap.String("target", targetName(target)),
		zap.Stringer("range", r),
		zap.Int("refreshed", len(refreshed)))
	sc.notify(cause, target, refreshed)
	return ApplyResult{Applied: true, Range: r, Refreshed: refreshed}, nil
}

// ShareParams returns a copy of the committed URL representation
func (sc *StagingController) ShareParams() url.Values {
	out := make(url.Values, len(sc.params))
	for k, v := range sc.params {
		out[k] = append([]string(nil), v...)
	}
	return out
}

func (sc *StagingController) notify(cause models.RefreshCause, source string, panels []string) {
	if sc.notifier == nil || len(panels) == 0 {
		return
	}
	sc.notifier.NotifyRefresh(models.RefreshEvent{
		DashboardID: sc.dashboard.ID,
		Cause:       cause,
		Source:      source,
		PanelIDs:    panels,
		Timestamp:   time.Now(),
	})
}

// checkTarget only admits the global picker and panels in Individual mode;
// other panels have no picker of their own.
func (sc *StagingController) checkTarget(target string) error {
	if target == GlobalPicker {
		return nil
	}
	state, err := sc.resolver.State(target)
	if err != nil {
		return err
	}
	if state != StateIndividual {
		return models.NewError(models.KindInvalidTransition, "panel %q has no individual time picker", target)
	}
	return nil
}

func targetName(target string) string {
	if target == GlobalPicker {
		return "global"
	}
	return target
}
