// Package seed loads development data into the database.
package seed

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gigmatch-dev/settlement/backend/internal/domain"
)

var requiredColumns = []string{"username", "work_date", "start_time", "end_time", "wage"}

type UserStore interface {
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
	CreateUser(ctx context.Context, user *domain.User) error
}

type RecordAdder interface {
	AddRecord(ctx context.Context, record *domain.ScheduleRecord) error
}

// Options controls how missing workers are created.
type Options struct {
	EmailDomain  string
	PasswordHash string
}

type Result struct {
	Records      int
	CreatedUsers int
	Skipped      int
}

// ImportScheduleRecords reads accepted shifts from CSV. The header must
// contain username, work_date, start_time, end_time and wage; full_name,
// email and description are optional. Workers that do not exist yet are
// created with opts.PasswordHash. Bad rows are logged and skipped.
func ImportScheduleRecords(ctx context.Context, users UserStore, records RecordAdder, opts Options, r io.Reader) (*Result, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i := range headers {
		headers[i] = strings.ToLower(strings.TrimSpace(headers[i]))
	}
	for _, column := range requiredColumns {
		if !slices.Contains(headers, column) {
			return nil, fmt.Errorf("missing column %q", column)
		}
	}

	result := &Result{}
	known := make(map[string]*domain.User)
	line := 1
	for {
		row, err := reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return result, fmt.Errorf("read line %d: %w", line+1, err)
		}
		line++

		fields := make(map[string]string, len(headers))
		for i, value := range row {
			fields[headers[i]] = strings.TrimSpace(value)
		}

		user, ok := known[fields["username"]]
		if !ok {
			var created bool
			user, created, err = ensureWorker(ctx, users, fields, opts)
			if err != nil {
				slog.Error("failed to resolve worker", "line", line, "username", fields["username"], "error", err)
				result.Skipped++
				continue
			}
			if created {
				result.CreatedUsers++
			}
			known[user.Username] = user
		}

		record, err := parseRecord(fields)
		if err != nil {
			slog.Error("skipping malformed row", "line", line, "error", err)
			result.Skipped++
			continue
		}
		record.OwnerID = user.ID

		if err := records.AddRecord(ctx, record); err != nil {
			slog.Error("failed to insert schedule record", "line", line, "error", err)
			result.Skipped++
			continue
		}
		result.Records++
	}

	slog.Info("schedule records imported", "records", result.Records, "created_users", result.CreatedUsers, "skipped", result.Skipped)
	return result, nil
}

func ensureWorker(ctx context.Context, users UserStore, fields map[string]string, opts Options) (*domain.User, bool, error) {
	username := fields["username"]
	if username == "" {
		return nil, false, errors.New("empty username")
	}

	user, err := users.GetUserByUsername(ctx, username)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, false, err
	}

	user = &domain.User{
		Username:     username,
		PasswordHash: opts.PasswordHash,
		FullName:     fields["full_name"],
		Email:        fields["email"],
		Role:         domain.RoleWorker,
	}
	if user.FullName == "" {
		user.FullName = username
	}
	if user.Email == "" {
		user.Email = username + "@" + opts.EmailDomain
	}

	if err := users.CreateUser(ctx, user); err != nil {
		return nil, false, err
	}
	return user, true, nil
}

func parseRecord(fields map[string]string) (*domain.ScheduleRecord, error) {
	workDate, err := time.Parse(time.DateOnly, fields["work_date"])
	if err != nil {
		return nil, fmt.Errorf("work_date: %w", err)
	}

	start, err := time.Parse("15:04", fields["start_time"])
	if err != nil {
		return nil, fmt.Errorf("start_time: %w", err)
	}
	end, err := time.Parse("15:04", fields["end_time"])
	if err != nil {
		return nil, fmt.Errorf("end_time: %w", err)
	}
	if !end.After(start) {
		return nil, fmt.Errorf("shift ends at %s before it starts at %s", fields["end_time"], fields["start_time"])
	}

	wage, err := strconv.ParseInt(fields["wage"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("wage: %w", err)
	}

	return &domain.ScheduleRecord{
		Wage:        wage,
		WorkDate:    workDate,
		StartTime:   start.Format("15:04"),
		EndTime:     end.Format("15:04"),
		Description: fields["description"],
	}, nil
}
