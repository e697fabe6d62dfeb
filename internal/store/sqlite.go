package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/findius/findius/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	if !strings.Contains(dsn, "_pragma=foreign_keys") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_pragma=foreign_keys(1)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS pages (
	id           TEXT PRIMARY KEY,
	slug         TEXT NOT NULL UNIQUE,
	query        TEXT NOT NULL,
	chat_context TEXT NOT NULL DEFAULT '[]',
	content_mdx  TEXT NOT NULL,
	title        TEXT NOT NULL,
	description  TEXT NOT NULL DEFAULT '',
	category     TEXT NOT NULL DEFAULT '',
	index_status TEXT NOT NULL DEFAULT 'noindex',
	views        INTEGER NOT NULL DEFAULT 0,
	created_at   DATETIME NOT NULL,
	updated_at   DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_pages_index_status ON pages(index_status, updated_at);

CREATE TABLE IF NOT EXISTS affiliate_partners (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	affiliate_url TEXT NOT NULL,
	category      TEXT NOT NULL,
	subcategory   TEXT NOT NULL DEFAULT '',
	is_active     INTEGER NOT NULL DEFAULT 1
);

CREATE INDEX IF NOT EXISTS idx_affiliate_partners_category ON affiliate_partners(category);

CREATE TABLE IF NOT EXISTS profiles (
	id                TEXT PRIMARY KEY,
	username          TEXT UNIQUE,
	avatar_url        TEXT NOT NULL DEFAULT '',
	reputation_points INTEGER NOT NULL DEFAULT 0,
	reputation_rank   TEXT NOT NULL DEFAULT 'Neuling',
	created_at        DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS comments (
	id         TEXT PRIMARY KEY,
	page_slug  TEXT NOT NULL REFERENCES pages(slug) ON DELETE CASCADE,
	user_id    TEXT NOT NULL,
	user_email TEXT NOT NULL DEFAULT '',
	parent_id  TEXT REFERENCES comments(id) ON DELETE CASCADE,
	content    TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_comments_page_slug ON comments(page_slug, created_at);
CREATE INDEX IF NOT EXISTS idx_comments_user_id ON comments(user_id, created_at);

CREATE TABLE IF NOT EXISTS comment_likes (
	comment_id TEXT NOT NULL REFERENCES comments(id) ON DELETE CASCADE,
	user_id    TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	PRIMARY KEY (comment_id, user_id)
);

CREATE TABLE IF NOT EXISTS ratings (
	id         TEXT PRIMARY KEY,
	page_slug  TEXT NOT NULL REFERENCES pages(slug) ON DELETE CASCADE,
	user_id    TEXT NOT NULL,
	score      INTEGER NOT NULL CHECK (score BETWEEN 1 AND 5),
	created_at DATETIME NOT NULL,
	UNIQUE (page_slug, user_id)
);

CREATE TABLE IF NOT EXISTS referrals (
	id               TEXT PRIMARY KEY,
	referrer_id      TEXT NOT NULL,
	visitor_id       TEXT NOT NULL,
	page_slug        TEXT NOT NULL DEFAULT '',
	ref_code         TEXT NOT NULL,
	clicked_at       DATETIME NOT NULL,
	converted        INTEGER NOT NULL DEFAULT 0,
	converted_at     DATETIME,
	commission_total TEXT NOT NULL DEFAULT '0',
	commission_user  TEXT NOT NULL DEFAULT '0'
);

CREATE INDEX IF NOT EXISTS idx_referrals_referrer_id ON referrals(referrer_id, clicked_at);

CREATE TABLE IF NOT EXISTS payouts (
	id             TEXT PRIMARY KEY,
	user_id        TEXT NOT NULL,
	amount         TEXT NOT NULL,
	paypal_email   TEXT NOT NULL,
	status         TEXT NOT NULL DEFAULT 'pending',
	requested_at   DATETIME NOT NULL,
	processed_at   DATETIME,
	failure_reason TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_payouts_user_id ON payouts(user_id, requested_at);
CREATE UNIQUE INDEX IF NOT EXISTS idx_payouts_one_open ON payouts(user_id)
	WHERE status IN ('pending', 'processing');
`

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func isSQLiteUnique(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// --- Pages ---

func (s *SQLiteStore) CreatePage(ctx context.Context, page *model.Page) error {
	if page.ID == "" {
		page.ID = uuid.New().String()
	}
	if page.IndexStatus == "" {
		page.IndexStatus = model.IndexStatusNoIndex
	}
	now := time.Now().UTC()
	page.CreatedAt, page.UpdatedAt = now, now

	chatJSON, err := json.Marshal(chatContext(page.ChatContext))
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal chat context")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO pages (id, slug, query, chat_context, content_mdx, title, description, category, index_status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		page.ID, page.Slug, page.Query, string(chatJSON), page.ContentMDX, page.Title,
		page.Description, page.Category, string(page.IndexStatus), now, now,
	)
	if err != nil {
		if isSQLiteUnique(err) {
			return eris.Wrapf(ErrConflict, "sqlite: page %s already exists", page.Slug)
		}
		return eris.Wrapf(err, "sqlite: insert page %s", page.Slug)
	}
	return nil
}

func (s *SQLiteStore) GetPage(ctx context.Context, slug string) (*model.Page, error) {
	p, err := scanSQLitePage(s.db.QueryRowContext(ctx, `SELECT `+pageColumns+` FROM pages WHERE slug = ?`, slug))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "sqlite: page %s", slug)
		}
		return nil, eris.Wrapf(err, "sqlite: get page %s", slug)
	}
	return p, nil
}

func (s *SQLiteStore) PageExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM pages WHERE slug = ?)`, slug).Scan(&exists)
	return exists, eris.Wrapf(err, "sqlite: page exists %s", slug)
}

func (s *SQLiteStore) ListPages(ctx context.Context, filter PageFilter) ([]model.Page, error) {
	query := `SELECT ` + pageColumns + ` FROM pages WHERE 1=1`
	args := []any{}

	if filter.Category != "" {
		query += ` AND category = ?`
		args = append(args, filter.Category)
	}
	if filter.IndexStatus != "" {
		query += ` AND index_status = ?`
		args = append(args, string(filter.IndexStatus))
	}
	query += ` ORDER BY updated_at DESC LIMIT ? OFFSET ?`
	args = append(args, pageLimit(filter.Limit), max(filter.Offset, 0))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list pages")
	}
	defer rows.Close()

	var pages []model.Page
	for rows.Next() {
		p, err := scanSQLitePage(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan page")
		}
		pages = append(pages, *p)
	}
	return pages, eris.Wrap(rows.Err(), "sqlite: list pages iterate")
}

func (s *SQLiteStore) SetIndexStatus(ctx context.Context, slug string, status model.IndexStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE pages SET index_status = ?, updated_at = ? WHERE slug = ?`,
		string(status), time.Now().UTC(), slug,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set index status %s", slug)
	}
	return requireAffected(res, "sqlite: page "+slug)
}

func (s *SQLiteStore) IncrementViews(ctx context.Context, slug string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE pages SET views = views + 1 WHERE slug = ?`, slug)
	return eris.Wrapf(err, "sqlite: increment views %s", slug)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSQLitePage(row scanner) (*model.Page, error) {
	var p model.Page
	var chatJSON, status string
	if err := row.Scan(&p.ID, &p.Slug, &p.Query, &chatJSON, &p.ContentMDX, &p.Title,
		&p.Description, &p.Category, &status, &p.Views, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.IndexStatus = model.IndexStatus(status)
	if chatJSON != "" {
		if err := json.Unmarshal([]byte(chatJSON), &p.ChatContext); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal chat context")
		}
	}
	return &p, nil
}

func requireAffected(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrap(ErrNotFound, what)
	}
	return nil
}

// --- Affiliate partners ---

func (s *SQLiteStore) ListActivePartners(ctx context.Context, category string) ([]model.AffiliatePartner, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, affiliate_url, category, subcategory, is_active FROM affiliate_partners
		 WHERE category = ? AND is_active ORDER BY name`,
		category,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list partners %s", category)
	}
	defer rows.Close()

	var partners []model.AffiliatePartner
	for rows.Next() {
		var p model.AffiliatePartner
		if err := rows.Scan(&p.ID, &p.Name, &p.AffiliateURL, &p.Category, &p.Subcategory, &p.IsActive); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan partner")
		}
		partners = append(partners, p)
	}
	return partners, eris.Wrap(rows.Err(), "sqlite: list partners iterate")
}

func (s *SQLiteStore) UpsertPartners(ctx context.Context, partners []model.AffiliatePartner) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: upsert partners begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	var n int64
	for i := range partners {
		p := &partners[i]
		if p.ID == "" {
			p.ID = uuid.New().String()
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO affiliate_partners (id, name, affiliate_url, category, subcategory, is_active)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT (id) DO UPDATE SET name = excluded.name, affiliate_url = excluded.affiliate_url,
			 category = excluded.category, subcategory = excluded.subcategory, is_active = excluded.is_active`,
			p.ID, p.Name, p.AffiliateURL, p.Category, p.Subcategory, p.IsActive,
		)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert partner %s", p.Name)
		}
		affected, _ := res.RowsAffected()
		n += affected
	}
	return n, eris.Wrap(tx.Commit(), "sqlite: upsert partners commit")
}

// --- Profiles ---

func (s *SQLiteStore) EnsureProfile(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO profiles (id, reputation_points, reputation_rank, created_at) VALUES (?, 0, ?, ?)
		 ON CONFLICT (id) DO NOTHING`,
		userID, model.RankFor(0), time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: ensure profile %s", userID)
}

func (s *SQLiteStore) GetProfile(ctx context.Context, userID string) (*model.Profile, error) {
	return s.getProfile(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = ?`, userID)
}

func (s *SQLiteStore) GetProfileByUsername(ctx context.Context, username string) (*model.Profile, error) {
	return s.getProfile(ctx, `SELECT `+profileColumns+` FROM profiles WHERE username = ?`, username)
}

func (s *SQLiteStore) getProfile(ctx context.Context, query, arg string) (*model.Profile, error) {
	var p model.Profile
	err := s.db.QueryRowContext(ctx, query, arg).
		Scan(&p.ID, &p.Username, &p.AvatarURL, &p.ReputationPoints, &p.ReputationRank, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "sqlite: profile %s", arg)
		}
		return nil, eris.Wrapf(err, "sqlite: get profile %s", arg)
	}
	return &p, nil
}

func (s *SQLiteStore) UpdateProfile(ctx context.Context, profile *model.Profile) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE profiles SET username = ?, avatar_url = ? WHERE id = ?`,
		nullable(profile.Username), profile.AvatarURL, profile.ID,
	)
	if err != nil {
		if isSQLiteUnique(err) {
			return eris.Wrapf(ErrConflict, "sqlite: username %s taken", profile.Username)
		}
		return eris.Wrapf(err, "sqlite: update profile %s", profile.ID)
	}
	return requireAffected(res, "sqlite: profile "+profile.ID)
}

func (s *SQLiteStore) AddReputation(ctx context.Context, userID string, delta int) (*model.Profile, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: add reputation begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	var points int
	err = tx.QueryRowContext(ctx,
		`UPDATE profiles SET reputation_points = MAX(reputation_points + ?, 0) WHERE id = ?
		 RETURNING reputation_points`,
		delta, userID,
	).Scan(&points)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "sqlite: profile %s", userID)
		}
		return nil, eris.Wrapf(err, "sqlite: add reputation %s", userID)
	}

	rank := model.RankFor(points)
	if _, err := tx.ExecContext(ctx, `UPDATE profiles SET reputation_rank = ? WHERE id = ?`, rank, userID); err != nil {
		return nil, eris.Wrapf(err, "sqlite: set rank %s", userID)
	}
	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: add reputation commit")
	}
	return &model.Profile{ID: userID, ReputationPoints: points, ReputationRank: rank}, nil
}

// --- Comments ---

const sqliteCommentSelect = `SELECT c.id, c.page_slug, c.user_id, c.user_email, COALESCE(c.parent_id, ''), c.content, c.created_at,
	(SELECT COUNT(*) FROM comment_likes l WHERE l.comment_id = c.id),
	EXISTS (SELECT 1 FROM comment_likes l WHERE l.comment_id = c.id AND l.user_id = ?),
	COALESCE(p.username, '')
FROM comments c LEFT JOIN profiles p ON p.id = c.user_id`

func (s *SQLiteStore) CreateComment(ctx context.Context, c *model.Comment) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	c.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO comments (id, page_slug, user_id, user_email, parent_id, content, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.PageSlug, c.UserID, c.UserEmail, nullable(c.ParentID), c.Content, c.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert comment on %s", c.PageSlug)
}

func (s *SQLiteStore) GetComment(ctx context.Context, id string) (*model.Comment, error) {
	comments, err := s.queryComments(ctx, sqliteCommentSelect+` WHERE c.id = ?`, "", id)
	if err != nil {
		return nil, err
	}
	if len(comments) == 0 {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: comment %s", id)
	}
	return &comments[0], nil
}

func (s *SQLiteStore) ListComments(ctx context.Context, pageSlug, viewerID string) ([]model.Comment, error) {
	return s.queryComments(ctx, sqliteCommentSelect+` WHERE c.page_slug = ? ORDER BY c.created_at ASC`, viewerID, pageSlug)
}

func (s *SQLiteStore) ListUserComments(ctx context.Context, userID string, limit int) ([]model.Comment, error) {
	return s.queryComments(ctx,
		sqliteCommentSelect+` WHERE c.user_id = ? AND c.parent_id IS NULL ORDER BY c.created_at DESC LIMIT ?`,
		userID, userID, pageLimit(limit),
	)
}

func (s *SQLiteStore) queryComments(ctx context.Context, query string, args ...any) ([]model.Comment, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query comments")
	}
	defer rows.Close()

	var comments []model.Comment
	for rows.Next() {
		var c model.Comment
		if err := rows.Scan(&c.ID, &c.PageSlug, &c.UserID, &c.UserEmail, &c.ParentID, &c.Content,
			&c.CreatedAt, &c.LikesCount, &c.UserLiked, &c.Username); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan comment")
		}
		comments = append(comments, c)
	}
	return comments, eris.Wrap(rows.Err(), "sqlite: query comments iterate")
}

func (s *SQLiteStore) DeleteComment(ctx context.Context, id, userID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM comments WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete comment %s", id)
	}
	return requireAffected(res, "sqlite: comment "+id)
}

func (s *SQLiteStore) ToggleLike(ctx context.Context, commentID, userID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM comment_likes WHERE comment_id = ? AND user_id = ?`, commentID, userID)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: unlike comment %s", commentID)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return false, nil
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO comment_likes (comment_id, user_id, created_at) VALUES (?, ?, ?)
		 ON CONFLICT DO NOTHING`,
		commentID, userID, time.Now().UTC(),
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: like comment %s", commentID)
	}
	return true, nil
}

// --- Ratings ---

func (s *SQLiteStore) UpsertRating(ctx context.Context, r *model.Rating) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: upsert rating begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	var existingID string
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM ratings WHERE page_slug = ? AND user_id = ?`, r.PageSlug, r.UserID,
	).Scan(&existingID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if r.ID == "" {
			r.ID = uuid.New().String()
		}
		r.CreatedAt = time.Now().UTC()
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO ratings (id, page_slug, user_id, score, created_at) VALUES (?, ?, ?, ?, ?)`,
			r.ID, r.PageSlug, r.UserID, r.Score, r.CreatedAt,
		); err != nil {
			return false, eris.Wrapf(err, "sqlite: insert rating %s", r.PageSlug)
		}
	case err != nil:
		return false, eris.Wrapf(err, "sqlite: find rating %s", r.PageSlug)
	default:
		r.ID = existingID
		if _, err := tx.ExecContext(ctx, `UPDATE ratings SET score = ? WHERE id = ?`, r.Score, r.ID); err != nil {
			return false, eris.Wrapf(err, "sqlite: update rating %s", r.PageSlug)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, eris.Wrap(err, "sqlite: upsert rating commit")
	}
	return existingID == "", nil
}

func (s *SQLiteStore) RatingSummary(ctx context.Context, pageSlug, viewerID string) (*model.RatingSummary, error) {
	var sum model.RatingSummary
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(AVG(score), 0.0), COUNT(*) FROM ratings WHERE page_slug = ?`, pageSlug,
	).Scan(&sum.Average, &sum.Count)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: rating summary %s", pageSlug)
	}

	if viewerID != "" {
		var score int
		err := s.db.QueryRowContext(ctx,
			`SELECT score FROM ratings WHERE page_slug = ? AND user_id = ?`, pageSlug, viewerID,
		).Scan(&score)
		switch {
		case err == nil:
			sum.UserScore = &score
		case !errors.Is(err, sql.ErrNoRows):
			return nil, eris.Wrapf(err, "sqlite: viewer rating %s", pageSlug)
		}
	}
	return &sum, nil
}

func (s *SQLiteStore) ListUserRatings(ctx context.Context, userID string, limit int) ([]model.Rating, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, page_slug, user_id, score, created_at FROM ratings
		 WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`,
		userID, pageLimit(limit),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list user ratings %s", userID)
	}
	defer rows.Close()

	var ratings []model.Rating
	for rows.Next() {
		var r model.Rating
		if err := rows.Scan(&r.ID, &r.PageSlug, &r.UserID, &r.Score, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan rating")
		}
		ratings = append(ratings, r)
	}
	return ratings, eris.Wrap(rows.Err(), "sqlite: list user ratings iterate")
}

// --- Referrals ---

func (s *SQLiteStore) CreateReferral(ctx context.Context, r *model.Referral) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	r.ClickedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO referrals (id, referrer_id, visitor_id, page_slug, ref_code, clicked_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.ReferrerID, r.VisitorID, r.PageSlug, r.RefCode, r.ClickedAt,
	)
	return eris.Wrapf(err, "sqlite: insert referral %s", r.RefCode)
}

func (s *SQLiteStore) GetReferral(ctx context.Context, id string) (*model.Referral, error) {
	r, err := scanSQLiteReferral(s.db.QueryRowContext(ctx, `SELECT `+referralColumns+` FROM referrals WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "sqlite: referral %s", id)
		}
		return nil, eris.Wrapf(err, "sqlite: get referral %s", id)
	}
	return r, nil
}

func (s *SQLiteStore) ListReferrals(ctx context.Context, referrerID string) ([]model.Referral, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+referralColumns+` FROM referrals WHERE referrer_id = ? ORDER BY clicked_at DESC`,
		referrerID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list referrals %s", referrerID)
	}
	defer rows.Close()

	var refs []model.Referral
	for rows.Next() {
		r, err := scanSQLiteReferral(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan referral")
		}
		refs = append(refs, *r)
	}
	return refs, eris.Wrap(rows.Err(), "sqlite: list referrals iterate")
}

func (s *SQLiteStore) ConvertReferral(ctx context.Context, id string, conv Conversion) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE referrals SET converted = 1, converted_at = ?, commission_total = ?, commission_user = ?
		 WHERE id = ? AND NOT converted`,
		conv.ConvertedAt, conv.Total.StringFixed(2), conv.User.StringFixed(2), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: convert referral %s", id)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	if _, err := s.GetReferral(ctx, id); err != nil {
		return err
	}
	return eris.Wrapf(ErrConflict, "sqlite: referral %s already converted", id)
}

func scanSQLiteReferral(row scanner) (*model.Referral, error) {
	var r model.Referral
	var convertedAt sql.NullTime
	if err := row.Scan(&r.ID, &r.ReferrerID, &r.VisitorID, &r.PageSlug, &r.RefCode, &r.ClickedAt,
		&r.Converted, &convertedAt, &r.CommissionTotal, &r.CommissionUser); err != nil {
		return nil, err
	}
	if convertedAt.Valid {
		t := convertedAt.Time
		r.ConvertedAt = &t
	}
	return &r, nil
}

// --- Payouts ---

func (s *SQLiteStore) CreatePayout(ctx context.Context, p *model.Payout) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.Status == "" {
		p.Status = model.PayoutPending
	}
	p.RequestedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO payouts (id, user_id, amount, paypal_email, status, requested_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.UserID, p.Amount.StringFixed(2), p.PaypalEmail, string(p.Status), p.RequestedAt,
	)
	if err != nil {
		if isSQLiteUnique(err) {
			return eris.Wrapf(ErrConflict, "sqlite: open payout exists for %s", p.UserID)
		}
		return eris.Wrapf(err, "sqlite: insert payout %s", p.UserID)
	}
	return nil
}

func (s *SQLiteStore) GetPayout(ctx context.Context, id string) (*model.Payout, error) {
	p, err := scanSQLitePayout(s.db.QueryRowContext(ctx, `SELECT `+payoutColumns+` FROM payouts WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "sqlite: payout %s", id)
		}
		return nil, eris.Wrapf(err, "sqlite: get payout %s", id)
	}
	return p, nil
}

func (s *SQLiteStore) ListPayouts(ctx context.Context, filter PayoutFilter) ([]model.Payout, error) {
	query := `SELECT ` + payoutColumns + ` FROM payouts WHERE 1=1`
	args := []any{}
	if filter.UserID != "" {
		query += ` AND user_id = ?`
		args = append(args, filter.UserID)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultPayoutLimit
	}
	query += ` ORDER BY requested_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list payouts")
	}
	defer rows.Close()

	var payouts []model.Payout
	for rows.Next() {
		p, err := scanSQLitePayout(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan payout")
		}
		payouts = append(payouts, *p)
	}
	return payouts, eris.Wrap(rows.Err(), "sqlite: list payouts iterate")
}

func (s *SQLiteStore) UpdatePayoutStatus(ctx context.Context, id string, change StatusChange) error {
	var processedAt any
	if change.ProcessedAt != nil {
		processedAt = *change.ProcessedAt
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE payouts SET status = ?, failure_reason = ?, processed_at = COALESCE(?, processed_at)
		 WHERE id = ? AND status = ?`,
		string(change.To), change.FailureReason, processedAt, id, string(change.From),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update payout %s", id)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	if _, err := s.GetPayout(ctx, id); err != nil {
		return err
	}
	return eris.Wrapf(ErrConflict, "sqlite: payout %s is no longer %s", id, change.From)
}

func scanSQLitePayout(row scanner) (*model.Payout, error) {
	var p model.Payout
	var status string
	var processedAt sql.NullTime
	if err := row.Scan(&p.ID, &p.UserID, &p.Amount, &p.PaypalEmail, &status, &p.RequestedAt,
		&processedAt, &p.FailureReason); err != nil {
		return nil, err
	}
	p.Status = model.PayoutStatus(status)
	if processedAt.Valid {
		t := processedAt.Time
		p.ProcessedAt = &t
	}
	return &p, nil
}
