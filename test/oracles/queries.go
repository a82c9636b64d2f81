package oracles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Oracle struct {
	Name string
	SQL  string
}

func All() []Oracle {
	return []Oracle{
		{
			Name: "O1_single_accepted_bid",
			SQL: `SELECT load_id, COUNT(*) FROM bids
                  WHERE status = 'accepted'
                  GROUP BY load_id HAVING COUNT(*) > 1`,
		},
		{
			Name: "O2_assignment_implies_progress",
			SQL: `SELECT id, status FROM loads
                  WHERE assigned_driver IS NOT NULL
                    AND status NOT IN ('active','completed')`,
		},
		{
			Name: "O3_winner_is_assigned_driver",
			SQL: `SELECT b.id FROM bids b
                  JOIN loads l ON l.id = b.load_id
                  WHERE b.status = 'accepted'
                    AND (l.assigned_driver IS NULL OR l.assigned_driver <> b.driver_id)`,
		},
		{
			Name: "O4_cascade_left_no_stragglers",
			SQL: `SELECT b.id FROM bids b
                  JOIN loads l ON l.id = b.load_id
                  WHERE b.status = 'pending' AND l.status = 'active'`,
		},
		{
			Name: "O5_completed_timestamp",
			SQL: `SELECT id FROM loads
                  WHERE (status = 'completed') <> (completed_at IS NOT NULL)`,
		},
		{
			Name: "O6_dispute_resolution_timestamp",
			SQL: `SELECT id FROM disputes
                  WHERE (status IN ('resolved','closed')) <> (resolved_at IS NOT NULL)`,
		},
		{
			Name: "O7_override_audited",
			SQL: `SELECT l.id FROM loads l
                  WHERE l.status = 'completed'
                    AND NOT EXISTS (
                        SELECT 1 FROM audit_events a
                        WHERE a.entity_kind = 'load' AND a.entity_id = l.id AND a.action = 'force_status')`,
		},
		{
			Name: "O8_bids_only_from_drivers",
			SQL: `SELECT b.id FROM bids b
                  JOIN users u ON u.id = b.driver_id
                  WHERE u.role <> 'driver'`,
		},
	}
}

// Run executes all oracles and returns the first failure (name and sample row text) or empty name if all pass.
func Run(ctx context.Context, pool *pgxpool.Pool) (string, string, error) {
	for _, o := range All() {
		rows, err := pool.Query(ctx, o.SQL)
		if err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
		has := rows.Next()
		if has {
			vals, err := rows.Values()
			rows.Close()
			if err != nil {
				return o.Name, "", err
			}
			return o.Name, fmt.Sprintf("%v", vals), nil
		}
		rows.Close()
	}
	return "", "", nil
}
