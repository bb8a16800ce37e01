package profile

import (
	"strings"

	"github.com/slok/agentgw/internal/model"
)

// Build creates a profile set from raw rows.
//
// A default row is prepended when missing. Rows with a restricted ID populate
// the single isolated profile (last one wins), the rest are stored under their
// alias resolved ID (last one wins, keeping the first position). When no
// restricted row exists, a base model with the isolation marker creates a
// synthetic isolated profile.
func Build(rows []model.ProfileRow, source model.Provenance) *model.ProfileSet {
	hasDefault := false
	for _, r := range rows {
		if strings.TrimSpace(r.ID) == model.DefaultProfileID {
			hasDefault = true
			break
		}
	}
	if !hasDefault {
		rows = append([]model.ProfileRow{defaultRow}, rows...)
	}

	var (
		general  []model.Profile
		isolated *model.Profile
		marked   *model.ProfileRow
	)
	for _, r := range rows {
		id := strings.TrimSpace(r.ID)
		if id == "" {
			continue
		}

		if IsRestricted(id) {
			isolated = &model.Profile{
				ID:       model.IsolatedProfileID,
				Name:     nameOr(r.Name, r.ID),
				Model:    r.BaseModel,
				Isolated: true,
			}
			continue
		}

		if marked == nil && strings.Contains(strings.ToLower(r.BaseModel), isolationMarker) {
			r := r
			marked = &r
		}

		rid := ResolveAlias(id)
		general = append(general, model.Profile{
			ID:    rid,
			Name:  nameOr(r.Name, rid),
			Model: r.BaseModel,
		})
	}

	if isolated == nil && marked != nil {
		isolated = &model.Profile{
			ID:       model.IsolatedProfileID,
			Name:     nameOr(marked.Name, model.IsolatedProfileID),
			Model:    marked.BaseModel,
			Isolated: true,
		}
	}

	if isolated != nil {
		general = append(general, *isolated)
	}
	set := model.NewProfileSet(source, general...)
	set.Default = selectDefault(set)

	return set
}

func selectDefault(set *model.ProfileSet) string {
	if _, ok := set.Get(model.DefaultProfileID); ok {
		return model.DefaultProfileID
	}

	ps := set.List()
	for _, p := range ps {
		if !p.Isolated {
			return p.ID
		}
	}
	if len(ps) > 0 {
		return ps[0].ID
	}

	return ""
}

func nameOr(name, fallback string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return fallback
	}
	return name
}
