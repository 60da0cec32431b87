package sink

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/matheusbucater/trab-final-str-modulo3/internal/domain"
	"github.com/matheusbucater/trab-final-str-modulo3/internal/ports"
)

// TimescaleStore writes packets to a hypertable keyed by (topic, source, ts).
type TimescaleStore struct {
	db        *sql.DB
	tableName string
}

func NewTimescaleStore(db *sql.DB, table string) *TimescaleStore {
	return &TimescaleStore{db: db, tableName: table}
}

func (t *TimescaleStore) Name() string { return "timescaledb" }

func (t *TimescaleStore) WriteBatch(ctx context.Context, packets []domain.Packet) error {
	if len(packets) == 0 {
		return nil
	}

	// Duplicate datagrams collapse on the unique key.
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(t.tableName)
	b.WriteString(" (topic, kind, source, ts, payload) VALUES ")

	args := make([]any, 0, len(packets)*5)
	for i, p := range packets {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(fmt.Sprintf("($%d,$%d,$%d,$%d,$%d)",
			len(args)+1, len(args)+2, len(args)+3, len(args)+4, len(args)+5))
		payload, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("marshal %s packet: %w", p.Topic(), err)
		}

		args = append(args,
			string(p.Topic()),
			p.Topic().Name(),
			p.Source(),
			p.Timestamp(),
			payload,
		)
	}

	b.WriteString(" ON CONFLICT (topic, source, ts) DO NOTHING")

	_, err := t.db.ExecContext(ctx, b.String(), args...)
	return err
}

var _ ports.PacketStore = (*TimescaleStore)(nil)
