package importer

import (
	"context"
	"sort"

	"github.com/two-pack/redmine-importer/internal/types"
)

// Fields lists every key a column can be mapped to for projectID: built-in
// fields, custom field names and relation types.
func (imp *Importer) Fields(ctx context.Context, projectID int64) ([]string, error) {
	fields := BuiltinFields()
	cfs, err := imp.store.ListCustomFields(ctx, projectID)
	if err != nil {
		return nil, err
	}
	for _, cf := range cfs {
		fields = append(fields, cf.Name)
	}
	for _, rt := range types.RelationTypes {
		fields = append(fields, string(rt))
	}
	sort.Strings(fields)
	return fields, nil
}
