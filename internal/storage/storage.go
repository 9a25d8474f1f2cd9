// Package storage provides SQLite-backed persistence for channels,
// messages, stocks, mentions, themes, and daily classifications.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"themeradar/internal/models"

	_ "modernc.org/sqlite"
)

// Storage wraps a SQLite database for all persistence operations.
type Storage struct {
	db *sql.DB
}

// New opens or creates the SQLite database at dbPath.
// An empty dbPath defaults to $TMPDIR/themeradar/data.db.
func New(dbPath string) (*Storage, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "themeradar", "data.db")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; WAL allows concurrent readers
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys=ON`); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	s := &Storage{db: db}
	if err := s.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS channels (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			telegram_id   INTEGER NOT NULL UNIQUE,
			username      TEXT,
			title         TEXT NOT NULL,
			market_focus  TEXT NOT NULL DEFAULT 'BOTH',
			language      TEXT NOT NULL DEFAULT 'ko',
			is_active     INTEGER NOT NULL DEFAULT 1,
			updated_at    INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			channel_id      INTEGER NOT NULL REFERENCES channels(id),
			telegram_msg_id INTEGER NOT NULL,
			message_text    TEXT,
			message_date    TEXT NOT NULL,
			is_analyzed     INTEGER NOT NULL DEFAULT 0,
			UNIQUE(channel_id, telegram_msg_id)
		)`,
		`CREATE TABLE IF NOT EXISTS stocks (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			ticker    TEXT NOT NULL,
			name_ko   TEXT,
			name_en   TEXT,
			market    TEXT NOT NULL,
			exchange  TEXT,
			industry  TEXT,
			UNIQUE(ticker, market)
		)`,
		`CREATE TABLE IF NOT EXISTS stock_mentions (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			message_id      INTEGER NOT NULL REFERENCES messages(id),
			stock_id        INTEGER NOT NULL REFERENCES stocks(id),
			mention_context TEXT,
			sentiment       TEXT NOT NULL DEFAULT 'neutral',
			confidence      REAL NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS themes (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			name_ko   TEXT NOT NULL,
			name_en   TEXT,
			market    TEXT NOT NULL,
			is_active INTEGER NOT NULL DEFAULT 1,
			UNIQUE(name_ko, market)
		)`,
		`CREATE TABLE IF NOT EXISTS daily_stock_themes (
			report_date   TEXT NOT NULL,
			stock_id      INTEGER NOT NULL REFERENCES stocks(id),
			theme_id      INTEGER NOT NULL REFERENCES themes(id),
			mention_count INTEGER NOT NULL DEFAULT 1,
			reason        TEXT,
			sector        TEXT NOT NULL DEFAULT 'other',
			PRIMARY KEY(report_date, stock_id, theme_id)
		)`,
		`CREATE TABLE IF NOT EXISTS daily_reports (
			report_date             TEXT PRIMARY KEY,
			run_id                  TEXT NOT NULL DEFAULT '',
			total_messages_analyzed INTEGER NOT NULL DEFAULT 0,
			total_stocks_found      INTEGER NOT NULL DEFAULT 0,
			total_themes            INTEGER NOT NULL DEFAULT 0,
			telegram_sent           INTEGER NOT NULL DEFAULT 0,
			csv_exported            INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_date ON messages(message_date)`,
		`CREATE INDEX IF NOT EXISTS idx_mentions_stock ON stock_mentions(stock_id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// ── Channel operations ──

// UpsertChannel inserts or updates a channel record and returns its ID.
func (s *Storage) UpsertChannel(ch *models.Channel) (int64, error) {
	if ch.Title == "" {
		return 0, fmt.Errorf("channel title must not be empty")
	}
	_, err := s.db.Exec(`
		INSERT INTO channels (telegram_id, username, title, market_focus, language, updated_at)
		VALUES (?,?,?,?,?,?)
		ON CONFLICT(telegram_id) DO UPDATE SET
			username = excluded.username,
			title = excluded.title,
			market_focus = excluded.market_focus,
			language = excluded.language,
			updated_at = excluded.updated_at`,
		ch.TelegramID, ch.Username, ch.Title, ch.MarketFocus, ch.Language,
		time.Now().UnixNano(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert channel: %w", err)
	}
	var id int64
	if err := s.db.QueryRow(`SELECT id FROM channels WHERE telegram_id = ?`, ch.TelegramID).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to read channel ID: %w", err)
	}
	return id, nil
}

// SetChannelActive flips a channel's active flag by username.
func (s *Storage) SetChannelActive(username string, active bool) error {
	res, err := s.db.Exec(`UPDATE channels SET is_active = ?, updated_at = ? WHERE username = ?`,
		boolToInt(active), time.Now().UnixNano(), username)
	if err != nil {
		return fmt.Errorf("failed to update channel: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("channel not found: %s", username)
	}
	return nil
}

// ActiveChannels returns all channels currently marked active.
func (s *Storage) ActiveChannels() ([]models.Channel, error) {
	return s.queryChannels(`SELECT id, telegram_id, username, title, market_focus, language, is_active, updated_at
		FROM channels WHERE is_active = 1 ORDER BY title`)
}

// AllChannels returns every registered channel, active ones first.
func (s *Storage) AllChannels() ([]models.Channel, error) {
	return s.queryChannels(`SELECT id, telegram_id, username, title, market_focus, language, is_active, updated_at
		FROM channels ORDER BY is_active DESC, title`)
}

func (s *Storage) queryChannels(query string) ([]models.Channel, error) {
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query channels: %w", err)
	}
	defer rows.Close()
	var channels []models.Channel
	for rows.Next() {
		var ch models.Channel
		var username sql.NullString
		var active int
		var updatedNano int64
		if err := rows.Scan(&ch.ID, &ch.TelegramID, &username, &ch.Title,
			&ch.MarketFocus, &ch.Language, &active, &updatedNano); err != nil {
			return nil, fmt.Errorf("failed to scan channel: %w", err)
		}
		ch.Username = username.String
		ch.IsActive = active != 0
		ch.UpdatedAt = time.Unix(0, updatedNano)
		channels = append(channels, ch)
	}
	return channels, rows.Err()
}

// ── Message operations ──

// MessageExists reports whether a message was already collected.
func (s *Storage) MessageExists(channelID, telegramMsgID int64) (bool, error) {
	var one int
	err := s.db.QueryRow(`SELECT 1 FROM messages WHERE channel_id = ? AND telegram_msg_id = ?`,
		channelID, telegramMsgID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check message: %w", err)
	}
	return true, nil
}

// InsertMessage stores a collected message. Duplicate
// (channel, telegram message) pairs are ignored.
func (s *Storage) InsertMessage(channelID, telegramMsgID int64, text, messageDate string) (int64, error) {
	res, err := s.db.Exec(`
		INSERT OR IGNORE INTO messages (channel_id, telegram_msg_id, message_text, message_date)
		VALUES (?,?,?,?)`,
		channelID, telegramMsgID, text, messageDate)
	if err != nil {
		return 0, fmt.Errorf("failed to insert message: %w", err)
	}
	return res.LastInsertId()
}

// MarkMessagesAnalyzed flags a batch of messages as analyzed.
func (s *Storage) MarkMessagesAnalyzed(ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	if _, err := s.db.Exec(`UPDATE messages SET is_analyzed = 1 WHERE id IN (`+placeholders+`)`, args...); err != nil {
		return fmt.Errorf("failed to mark messages analyzed: %w", err)
	}
	return nil
}

// ── Stock operations ──

// GetOrCreateStock finds a stock by (ticker, market) or inserts it.
func (s *Storage) GetOrCreateStock(stock *models.Stock) (int64, error) {
	if err := stock.Validate(); err != nil {
		return 0, fmt.Errorf("invalid stock: %w", err)
	}
	var id int64
	err := s.db.QueryRow(`SELECT id FROM stocks WHERE ticker = ? AND market = ?`,
		stock.Ticker, stock.Market).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("failed to look up stock: %w", err)
	}
	res, err := s.db.Exec(`INSERT INTO stocks (ticker, name_ko, name_en, market, exchange, industry)
		VALUES (?,?,?,?,?,?)`,
		stock.Ticker, nullable(stock.NameKO), nullable(stock.NameEN),
		stock.Market, nullable(stock.Exchange), nullable(stock.Industry))
	if err != nil {
		return 0, fmt.Errorf("failed to insert stock: %w", err)
	}
	return res.LastInsertId()
}

// SearchStock finds stocks whose ticker or name matches the query.
func (s *Storage) SearchStock(query string) ([]models.Stock, error) {
	pattern := "%" + query + "%"
	rows, err := s.db.Query(`
		SELECT id, ticker, name_ko, name_en, market, exchange, industry FROM stocks
		WHERE name_ko LIKE ? OR name_en LIKE ? OR ticker LIKE ?`,
		pattern, pattern, pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to search stocks: %w", err)
	}
	defer rows.Close()
	var stocks []models.Stock
	for rows.Next() {
		var st models.Stock
		var nameKO, nameEN, exchange, industry sql.NullString
		if err := rows.Scan(&st.ID, &st.Ticker, &nameKO, &nameEN, &st.Market, &exchange, &industry); err != nil {
			return nil, fmt.Errorf("failed to scan stock: %w", err)
		}
		st.NameKO, st.NameEN = nameKO.String, nameEN.String
		st.Exchange, st.Industry = exchange.String, industry.String
		stocks = append(stocks, st)
	}
	return stocks, rows.Err()
}

// UpdateStockIndustry caches an industry label onto a stock record.
func (s *Storage) UpdateStockIndustry(stockID int64, industry string) error {
	res, err := s.db.Exec(`UPDATE stocks SET industry = ? WHERE id = ?`, industry, stockID)
	if err != nil {
		return fmt.Errorf("failed to update industry: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("stock not found: %d", stockID)
	}
	return nil
}

// ── Mention operations ──

// InsertMention stores one raw stock mention.
func (s *Storage) InsertMention(m *models.Mention) (int64, error) {
	if err := m.Validate(); err != nil {
		return 0, fmt.Errorf("invalid mention: %w", err)
	}
	res, err := s.db.Exec(`
		INSERT INTO stock_mentions (message_id, stock_id, mention_context, sentiment, confidence)
		VALUES (?,?,?,?,?)`,
		m.MessageID, m.StockID, nullable(m.Context), m.Sentiment, m.Confidence)
	if err != nil {
		return 0, fmt.Errorf("failed to insert mention: %w", err)
	}
	return res.LastInsertId()
}

// DailyAggregates rolls raw mentions up to one row per stock for the
// given report date, ordered by mention count descending. Dominant
// sentiment resolves to positive on ties, and the confidence filter is
// satisfied by any row with at least one mention; both quirks are kept
// to match the historical data.
func (s *Storage) DailyAggregates(reportDate string) ([]models.DailyAggregate, error) {
	rows, err := s.db.Query(`
		SELECT
			st.id, st.ticker, COALESCE(st.name_ko, ''), COALESCE(st.name_en, ''),
			st.market, COALESCE(st.exchange, ''), COALESCE(st.industry, ''),
			COUNT(sm.id) AS mention_count,
			COALESCE(GROUP_CONCAT(sm.mention_context, ' | '), ''),
			CASE
				WHEN SUM(CASE WHEN sm.sentiment = 'positive' THEN 1 ELSE 0 END) >=
				     SUM(CASE WHEN sm.sentiment = 'negative' THEN 1 ELSE 0 END)
				THEN 'positive' ELSE 'negative'
			END,
			AVG(sm.confidence)
		FROM stock_mentions sm
		JOIN messages m ON sm.message_id = m.id
		JOIN stocks st ON sm.stock_id = st.id
		WHERE DATE(m.message_date) = ?
		GROUP BY st.id
		HAVING AVG(sm.confidence) >= 0.2 OR COUNT(sm.id) >= 1
		ORDER BY COUNT(sm.id) DESC`,
		reportDate)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily aggregates: %w", err)
	}
	defer rows.Close()
	var aggs []models.DailyAggregate
	for rows.Next() {
		var a models.DailyAggregate
		if err := rows.Scan(&a.StockID, &a.Ticker, &a.NameKO, &a.NameEN,
			&a.Market, &a.Exchange, &a.Industry,
			&a.MentionCount, &a.AggregatedContext, &a.DominantSentiment, &a.AvgConfidence); err != nil {
			return nil, fmt.Errorf("failed to scan aggregate: %w", err)
		}
		aggs = append(aggs, a)
	}
	return aggs, rows.Err()
}

// ── Theme operations ──

// GetOrCreateTheme finds a theme by (name, market) or inserts it.
func (s *Storage) GetOrCreateTheme(nameKO, nameEN, market string) (int64, error) {
	if nameKO == "" {
		return 0, fmt.Errorf("theme name must not be empty")
	}
	var id int64
	err := s.db.QueryRow(`SELECT id FROM themes WHERE name_ko = ? AND market = ?`, nameKO, market).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("failed to look up theme: %w", err)
	}
	res, err := s.db.Exec(`INSERT INTO themes (name_ko, name_en, market) VALUES (?,?,?)`,
		nameKO, nullable(nameEN), market)
	if err != nil {
		return 0, fmt.Errorf("failed to insert theme: %w", err)
	}
	return res.LastInsertId()
}

// ── Daily classification operations ──

// InsertDailyStockTheme upserts one classification fact. Last write wins
// per (report date, stock, theme) key.
func (s *Storage) InsertDailyStockTheme(reportDate string, stockID, themeID int64, mentionCount int, reason, sector string) error {
	if !models.IsValidSector(sector) {
		return fmt.Errorf("invalid sector code: %q", sector)
	}
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO daily_stock_themes
			(report_date, stock_id, theme_id, mention_count, reason, sector)
		VALUES (?,?,?,?,?,?)`,
		reportDate, stockID, themeID, mentionCount, nullable(reason), sector)
	if err != nil {
		return fmt.Errorf("failed to upsert daily stock theme: %w", err)
	}
	return nil
}

// DailyClassification returns the stored classification for a date,
// shaped by market and theme. An empty classification means nothing was
// stored for that date.
func (s *Storage) DailyClassification(reportDate string) (*models.Classification, error) {
	rows, err := s.db.Query(`
		SELECT
			dst.mention_count, COALESCE(dst.reason, ''), dst.sector,
			st.ticker, COALESCE(st.name_ko, ''), COALESCE(st.name_en, ''), st.market,
			t.name_ko
		FROM daily_stock_themes dst
		JOIN stocks st ON dst.stock_id = st.id
		JOIN themes t ON dst.theme_id = t.id
		WHERE dst.report_date = ?
		ORDER BY t.market, t.name_ko, dst.mention_count DESC`,
		reportDate)
	if err != nil {
		return nil, fmt.Errorf("failed to query classification: %w", err)
	}
	defer rows.Close()

	result := &models.Classification{KR: models.ThemeSet{}, US: models.ThemeSet{}}
	for rows.Next() {
		var mentionCount int
		var reason, sector, ticker, nameKO, nameEN, market, themeName string
		if err := rows.Scan(&mentionCount, &reason, &sector, &ticker, &nameKO, &nameEN, &market, &themeName); err != nil {
			return nil, fmt.Errorf("failed to scan classification row: %w", err)
		}
		name := nameKO
		if name == "" {
			name = nameEN
		}
		if name == "" {
			name = ticker
		}
		assignment := models.Assignment{
			Name:         name,
			Ticker:       ticker,
			Sector:       sector,
			Reason:       reason,
			MentionCount: mentionCount,
		}
		if market == models.MarketUS {
			result.US[themeName] = append(result.US[themeName], assignment)
		} else {
			result.KR[themeName] = append(result.KR[themeName], assignment)
		}
	}
	return result, rows.Err()
}

// ── Report tracking ──

// ReportRecord summarizes one pipeline run for a report date. RunID
// identifies the run that last produced the date, for log correlation.
type ReportRecord struct {
	ReportDate            string
	RunID                 string
	TotalMessagesAnalyzed int
	TotalStocksFound      int
	TotalThemes           int
	TelegramSent          bool
	CSVExported           bool
}

// RecordDailyReport upserts the run summary for a date.
func (s *Storage) RecordDailyReport(r *ReportRecord) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO daily_reports
			(report_date, run_id, total_messages_analyzed, total_stocks_found, total_themes, telegram_sent, csv_exported)
		VALUES (?,?,?,?,?,?,?)`,
		r.ReportDate, r.RunID, r.TotalMessagesAnalyzed, r.TotalStocksFound, r.TotalThemes,
		boolToInt(r.TelegramSent), boolToInt(r.CSVExported))
	if err != nil {
		return fmt.Errorf("failed to record daily report: %w", err)
	}
	return nil
}

// ReportStatus returns the run summary for a date, or nil if none.
func (s *Storage) ReportStatus(reportDate string) (*ReportRecord, error) {
	row := s.db.QueryRow(`
		SELECT report_date, run_id, total_messages_analyzed, total_stocks_found, total_themes, telegram_sent, csv_exported
		FROM daily_reports WHERE report_date = ?`, reportDate)
	var r ReportRecord
	var sent, exported int
	err := row.Scan(&r.ReportDate, &r.RunID, &r.TotalMessagesAnalyzed, &r.TotalStocksFound, &r.TotalThemes, &sent, &exported)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read report status: %w", err)
	}
	r.TelegramSent = sent != 0
	r.CSVExported = exported != 0
	return &r, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
