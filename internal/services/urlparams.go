package services

import (
	"net/url"
	"sort"
	"strconv"
	"strings"

	"scopeboard/internal/models"
)

const (
	paramPeriod     = "period"
	paramFrom       = "from"
	paramTo         = "to"
	panelTimePrefix = "panel-time-"
)

// EncodeTimeParams mirrors committed ranges into URL parameters: the global
// range as period or from/to, and one panel-time-<id> per individual panel.
func EncodeTimeParams(global models.TimeRange, panels map[string]models.TimeRange) url.Values {
	values := url.Values{}
	if global.Kind == models.RangeAbsolute {
		values.Set(paramFrom, strconv.FormatInt(global.StartMicros, 10))
		values.Set(paramTo, strconv.FormatInt(global.EndMicros, 10))
	} else {
		values.Set(paramPeriod, global.String())
	}

	ids := make([]string, 0, len(panels))
	for id := range panels {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		values.Set(panelTimePrefix+id, panels[id].String())
	}
	return values
}

// DecodeTimeParams parses a shared link back into ranges. A missing global
// range yields nil.
func DecodeTimeParams(values url.Values) (*models.TimeRange, map[string]models.TimeRange, error) {
	var global *models.TimeRange
	if period := values.Get(paramPeriod); period != "" {
		r, err := models.ParseTimeRange(period)
		if err != nil {
			return nil, nil, err
		}
		global = &r
	} else if from, to := values.Get(paramFrom), values.Get(paramTo); from != "" || to != "" {
		r, err := models.ParseTimeRange(from + "-" + to)
		if err != nil {
			return nil, nil, err
		}
		global = &r
	}

	panels := make(map[string]models.TimeRange)
	for key := range values {
		id, ok := strings.CutPrefix(key, panelTimePrefix)
		if !ok || id == "" {
			continue
		}
		r, err := models.ParseTimeRange(values.Get(key))
		if err != nil {
			return nil, nil, err
		}
		panels[id] = r
	}
	return global, panels, nil
}
