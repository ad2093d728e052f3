// ABOUTME: Request log storage operations.
// ABOUTME: Handles inserting and querying HTTP request logs.

package store

import (
	"context"
	"time"
)

// RequestLog represents an HTTP request log entry
type RequestLog struct {
	ID           int64     `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	RequestID    string    `json:"request_id"`
	Area         string    `json:"area"`
	Method       string    `json:"method"`
	Path         string    `json:"path"`
	StatusCode   int       `json:"status_code"`
	DurationMs   int       `json:"duration_ms"`
	UserID       string    `json:"user_id"`
	IPAddress    string    `json:"ip_address"`
	UserAgent    string    `json:"user_agent"`
	Error        string    `json:"error,omitempty"`
	RequestBody  string    `json:"request_body,omitempty"`
	ResponseBody string    `json:"response_body,omitempty"`
}

// LogRequest inserts a request log entry
func (s *Store) LogRequest(ctx context.Context, log *RequestLog) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO request_logs (request_id, area, method, path, status_code, duration_ms, user_id, ip_address, user_agent, error, request_body, response_body)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, log.RequestID, log.Area, log.Method, log.Path, log.StatusCode, log.DurationMs, log.UserID, log.IPAddress, log.UserAgent, log.Error, log.RequestBody, log.ResponseBody)
	return err
}

// RequestLogQuery represents filters for request logs
type RequestLogQuery struct {
	Limit      int
	Offset     int
	Area       string
	Method     string
	PathPrefix string
	StatusCode int
	UserID     string
}

// RequestLogStats represents aggregate statistics
type RequestLogStats struct {
	TotalRequests   int `json:"total_requests"`
	TodayRequests   int `json:"today_requests"`
	ErrorRequests   int `json:"error_requests"`
	AvgDurationMs   int `json:"avg_duration_ms"`
	UniqueEndpoints int `json:"unique_endpoints"`
	UniqueUsers     int `json:"unique_users"`
}

// GetRequestLogs retrieves request logs with filtering, newest first.
func (s *Store) GetRequestLogs(ctx context.Context, q *RequestLogQuery) ([]*RequestLog, error) {
	query := `SELECT id, timestamp, COALESCE(request_id, ''), COALESCE(area, ''), method, path, status_code, duration_ms,
	          COALESCE(user_id, ''), COALESCE(ip_address, ''), COALESCE(user_agent, ''), COALESCE(error, ''),
	          COALESCE(request_body, ''), COALESCE(response_body, '')
	          FROM request_logs WHERE 1=1`
	args := []any{}

	if q.Area != "" {
		query += " AND area = ?"
		args = append(args, q.Area)
	}
	if q.Method != "" {
		query += " AND method = ?"
		args = append(args, q.Method)
	}
	if q.PathPrefix != "" {
		query += ` AND path LIKE ? ESCAPE '\'`
		args = append(args, escapeSQLLike(q.PathPrefix)+"%")
	}
	if q.StatusCode > 0 {
		query += " AND status_code = ?"
		args = append(args, q.StatusCode)
	}
	if q.UserID != "" {
		query += " AND user_id = ?"
		args = append(args, q.UserID)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}
	query += " ORDER BY timestamp DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, q.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := []*RequestLog{}
	for rows.Next() {
		log := &RequestLog{}
		if err := rows.Scan(&log.ID, &log.Timestamp, &log.RequestID, &log.Area, &log.Method, &log.Path, &log.StatusCode,
			&log.DurationMs, &log.UserID, &log.IPAddress, &log.UserAgent, &log.Error,
			&log.RequestBody, &log.ResponseBody); err != nil {
			return nil, err
		}
		logs = append(logs, log)
	}
	return logs, rows.Err()
}

// GetRequestLogStats returns aggregate statistics
func (s *Store) GetRequestLogStats(ctx context.Context) (*RequestLogStats, error) {
	stats := &RequestLogStats{}
	today := time.Now().UTC().Format("2006-01-02")

	queries := []struct {
		sql  string
		args []any
		dest *int
	}{
		{"SELECT COUNT(*) FROM request_logs", nil, &stats.TotalRequests},
		{"SELECT COUNT(*) FROM request_logs WHERE date(timestamp) = ?", []any{today}, &stats.TodayRequests},
		{"SELECT COUNT(*) FROM request_logs WHERE status_code >= 400", nil, &stats.ErrorRequests},
		{"SELECT CAST(COALESCE(AVG(duration_ms), 0) AS INTEGER) FROM request_logs", nil, &stats.AvgDurationMs},
		{"SELECT COUNT(DISTINCT path) FROM request_logs", nil, &stats.UniqueEndpoints},
		{"SELECT COUNT(DISTINCT user_id) FROM request_logs WHERE user_id != ''", nil, &stats.UniqueUsers},
	}
	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, q.sql, q.args...).Scan(q.dest); err != nil {
			return nil, err
		}
	}

	return stats, nil
}

// GetAreaErrorRate returns the error rate percentage for an area since a given time
func (s *Store) GetAreaErrorRate(ctx context.Context, area string, since time.Time) (float64, error) {
	var totalCount, errorCount int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN status_code >= 400 THEN 1 ELSE 0 END), 0)
		FROM request_logs
		WHERE area = ? AND timestamp >= ?
	`, area, since).Scan(&totalCount, &errorCount)
	if err != nil {
		return 0, err
	}

	if totalCount == 0 {
		return 0, nil
	}
	return (float64(errorCount) / float64(totalCount)) * 100.0, nil
}
