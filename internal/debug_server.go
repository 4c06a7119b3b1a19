package internal

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/dgraph-io/badger/v4"
)

// StatsProvider feeds the stats endpoint a point-in-time snapshot.
type StatsProvider func() any

// StartDebugServer exposes runtime stats and a raw key inspector on a
// side port. Values are returned as sizes only; payloads never leave
// the process through this endpoint.
func StartDebugServer(log *slog.Logger, db *badger.DB, port int, statsProvider StatsProvider) {
	mux := http.NewServeMux()

	mux.HandleFunc("/debug/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if statsProvider == nil {
			_, _ = w.Write([]byte("{}"))
			return
		}
		_ = json.NewEncoder(w).Encode(statsProvider())
	})

	mux.HandleFunc("/debug/keys", func(w http.ResponseWriter, r *http.Request) {
		prefix := r.URL.Query().Get("prefix")

		type row struct {
			Key  string `json:"key"`
			Size int64  `json:"size"`
		}
		var rows []row

		_ = db.View(func(txn *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.PrefetchValues = false
			it := txn.NewIterator(opts)
			defer it.Close()
			for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
				item := it.Item()
				rows = append(rows, row{Key: string(item.Key()), Size: item.ValueSize()})
			}
			return nil
		})

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(rows)
	})

	go func() {
		address := fmt.Sprintf("0.0.0.0:%d", port)
		log.Info("Starting debug server", "address", address)
		_ = http.ListenAndServe(address, mux)
	}()
}
