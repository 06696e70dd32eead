package history

import (
	"go.mongodb.org/mongo-driver/mongo/options"
)

func mongoFindOptionsDescByTurn(limit int) *options.FindOptions {
	opts := options.Find().SetSort(map[string]int{"turn_index": -1})
	if limit > 0 {
		opts = opts.SetLimit(int64(limit))
	}
	return opts
}
