package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/ritebook/libs/db"
	"github.com/md-rashed-zaman/ritebook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/ritebook/services/booking-service/internal/model"
)

type ProviderRepository struct {
	pool *db.Pool
}

var _ booking.Directory = (*ProviderRepository)(nil)

func NewProviderRepository(pool *db.Pool) *ProviderRepository {
	return &ProviderRepository{pool: pool}
}

// SaveProvider replaces the provider's profile and schedule.
func (r *ProviderRepository) SaveProvider(ctx context.Context, p model.Provider) error {
	days := make([]int16, 0, len(p.WorkingDays))
	for _, d := range p.WorkingDays {
		days = append(days, int16(d))
	}

	return r.pool.InTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO providers (id, name, location, working_days)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO UPDATE
			SET name = EXCLUDED.name,
				location = EXCLUDED.location,
				working_days = EXCLUDED.working_days,
				updated_at = now()
		`, p.ID, p.Name, p.Location, days); err != nil {
			return err
		}

		for _, table := range []string{"provider_services", "provider_shifts", "provider_off_dates"} {
			if _, err := tx.Exec(ctx, `DELETE FROM `+table+` WHERE provider_id = $1`, p.ID); err != nil {
				return err
			}
		}

		for _, svc := range p.Services {
			if _, err := tx.Exec(ctx, `
				INSERT INTO provider_services (provider_id, service_id)
				VALUES ($1, $2)
				ON CONFLICT DO NOTHING
			`, p.ID, svc); err != nil {
				return err
			}
		}
		for i, s := range p.WorkShifts {
			if _, err := tx.Exec(ctx, `
				INSERT INTO provider_shifts (provider_id, position, start_minute, end_minute)
				VALUES ($1, $2, $3, $4)
			`, p.ID, i, int(s.Start), int(s.End)); err != nil {
				return err
			}
		}
		for _, d := range p.OffDates {
			if _, err := tx.Exec(ctx, `
				INSERT INTO provider_off_dates (provider_id, off_date)
				VALUES ($1, $2::date)
				ON CONFLICT DO NOTHING
			`, p.ID, d); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *ProviderRepository) GetProvider(ctx context.Context, id string) (model.Provider, error) {
	providers, err := r.load(ctx, `
		SELECT id, name, location, working_days
		FROM providers
		WHERE id = $1
	`, id)
	if err != nil {
		return model.Provider{}, err
	}
	if len(providers) == 0 {
		return model.Provider{}, booking.ErrProviderNotFound
	}
	return providers[0], nil
}

func (r *ProviderRepository) FindProviders(ctx context.Context, q booking.ProviderQuery) ([]model.Provider, error) {
	return r.load(ctx, `
		SELECT p.id, p.name, p.location, p.working_days
		FROM providers p
		WHERE ($1 = '' OR EXISTS (
				SELECT 1 FROM provider_services s WHERE s.provider_id = p.id AND s.service_id = $1
			))
			AND ($2 = '' OR lower(p.location) = lower($2))
		ORDER BY p.id ASC
	`, q.ServiceID, q.Location)
}

// load runs a providers query and attaches services, shifts and off dates.
func (r *ProviderRepository) load(ctx context.Context, sql string, args ...any) ([]model.Provider, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		out   []model.Provider
		ids   []string
		index = map[string]int{}
	)
	for rows.Next() {
		var (
			p    model.Provider
			days []int16
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.Location, &days); err != nil {
			return nil, err
		}
		for _, d := range days {
			p.WorkingDays = append(p.WorkingDays, time.Weekday(d))
		}
		index[p.ID] = len(out)
		ids = append(ids, p.ID)
		out = append(out, p)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	if len(out) == 0 {
		return nil, nil
	}

	if err := r.attachServices(ctx, ids, out, index); err != nil {
		return nil, err
	}
	if err := r.attachShifts(ctx, ids, out, index); err != nil {
		return nil, err
	}
	if err := r.attachOffDates(ctx, ids, out, index); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *ProviderRepository) attachServices(ctx context.Context, ids []string, out []model.Provider, index map[string]int) error {
	rows, err := r.pool.Query(ctx, `
		SELECT provider_id, service_id
		FROM provider_services
		WHERE provider_id = ANY($1)
		ORDER BY provider_id, service_id
	`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var providerID, serviceID string
		if err := rows.Scan(&providerID, &serviceID); err != nil {
			return err
		}
		i := index[providerID]
		out[i].Services = append(out[i].Services, serviceID)
	}
	return rows.Err()
}

func (r *ProviderRepository) attachShifts(ctx context.Context, ids []string, out []model.Provider, index map[string]int) error {
	rows, err := r.pool.Query(ctx, `
		SELECT provider_id, start_minute, end_minute
		FROM provider_shifts
		WHERE provider_id = ANY($1)
		ORDER BY provider_id, position
	`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			providerID string
			start, end int
		)
		if err := rows.Scan(&providerID, &start, &end); err != nil {
			return err
		}
		i := index[providerID]
		out[i].WorkShifts = append(out[i].WorkShifts, model.Shift{Start: model.Clock(start), End: model.Clock(end)})
	}
	return rows.Err()
}

func (r *ProviderRepository) attachOffDates(ctx context.Context, ids []string, out []model.Provider, index map[string]int) error {
	rows, err := r.pool.Query(ctx, `
		SELECT provider_id, off_date
		FROM provider_off_dates
		WHERE provider_id = ANY($1)
		ORDER BY provider_id, off_date
	`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			providerID string
			day        time.Time
		)
		if err := rows.Scan(&providerID, &day); err != nil {
			return err
		}
		i := index[providerID]
		out[i].OffDates = append(out[i].OffDates, day.Format(model.DateLayout))
	}
	return rows.Err()
}
