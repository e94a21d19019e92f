package orchestrator

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

var statusLogHeader = []string{
	"control_id", "control_name", "provider", "resource_type",
	"status", "check_id", "error_message", "timestamp", "attempts",
}

// StatusLog is the durable, append-only record of task state. Writes
// serialise through a single writer and fsync on every append; a
// task's current status is the latest row for its key.
type StatusLog struct {
	path string
	mu   sync.Mutex
	file *os.File
	csv  *csv.Writer
}

func OpenStatusLog(path string) (*StatusLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create status log dir: %w", err)
	}
	_, statErr := os.Stat(path)
	fresh := os.IsNotExist(statErr)
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open status log: %w", err)
	}
	log := &StatusLog{path: path, file: file, csv: csv.NewWriter(file)}
	if fresh {
		if err := log.writeRecord(statusLogHeader); err != nil {
			file.Close()
			return nil, err
		}
	}
	return log, nil
}

func (l *StatusLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.csv.Flush()
	return l.file.Close()
}

// Append writes one status row and syncs it to disk.
func (l *StatusLog) Append(row StatusRow) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if row.Timestamp.IsZero() {
		row.Timestamp = time.Now().UTC()
	}
	record := []string{
		strconv.Itoa(row.ControlID),
		row.ControlName,
		row.Provider,
		row.ResourceType,
		string(row.Status),
		row.CheckID,
		row.ErrorMessage,
		row.Timestamp.UTC().Format(time.RFC3339Nano),
		strconv.Itoa(row.Attempts),
	}
	return l.writeRecord(record)
}

func (l *StatusLog) writeRecord(record []string) error {
	if err := l.csv.Write(record); err != nil {
		return fmt.Errorf("failed to append status row: %w", err)
	}
	l.csv.Flush()
	if err := l.csv.Error(); err != nil {
		return fmt.Errorf("failed to flush status row: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync status log: %w", err)
	}
	return nil
}

// Load reads every appended row in order.
func (l *StatusLog) Load() ([]StatusRow, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	file, err := os.Open(l.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read status log: %w", err)
	}
	defer file.Close()
	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse status log: %w", err)
	}
	var rows []StatusRow
	for i, record := range records {
		if i == 0 || len(record) < len(statusLogHeader) {
			continue
		}
		rows = append(rows, parseStatusRecord(record))
	}
	return rows, nil
}

// CurrentStatuses reduces the log to the latest row per task key.
func (l *StatusLog) CurrentStatuses() (map[string]StatusRow, error) {
	rows, err := l.Load()
	if err != nil {
		return nil, err
	}
	out := make(map[string]StatusRow, len(rows))
	for _, row := range rows {
		out[row.key()] = row
	}
	return out, nil
}

func parseStatusRecord(record []string) StatusRow {
	controlID, _ := strconv.Atoi(record[0])
	attempts, _ := strconv.Atoi(record[8])
	ts, _ := time.Parse(time.RFC3339Nano, record[7])
	return StatusRow{
		ControlID:    controlID,
		ControlName:  record[1],
		Provider:     record[2],
		ResourceType: record[3],
		Status:       TaskStatus(record[4]),
		CheckID:      record[5],
		ErrorMessage: record[6],
		Timestamp:    ts,
		Attempts:     attempts,
	}
}
