package merge

import (
	"fmt"
)

// mergeMetadata imports referenced auxiliary assets the target lacks.
// Today that is custom icons only; recycle-bin designation, templates and
// dictionary-valued data are not merged and may lose updates across peers.
func (m *Merger) mergeMetadata(ctx Context) ChangeList {
	var changes ChangeList
	for _, iconID := range ctx.SourceDB.CustomIconUUIDs() {
		if ctx.TargetDB.ContainsCustomIcon(iconID) {
			continue
		}
		ctx.TargetDB.AddCustomIcon(iconID, ctx.SourceDB.CustomIcon(iconID))
		changes = append(changes, Change{
			Kind:    ChangeIconAdded,
			UUID:    iconID,
			Message: fmt.Sprintf("Adding missing icon %s", iconID),
		})
	}
	return changes
}
