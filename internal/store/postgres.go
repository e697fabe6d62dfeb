package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/findius/findius/internal/db"
	"github.com/findius/findius/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, closeFn: pool.Close}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	return migratePostgres(ctx, s.pool)
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// --- Pages ---

const pageColumns = `id, slug, query, chat_context, content_mdx, title, description, category, index_status, views, created_at, updated_at`

func (s *PostgresStore) CreatePage(ctx context.Context, page *model.Page) error {
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
		return eris.Wrap(err, "postgres: marshal chat context")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO pages (id, slug, query, chat_context, content_mdx, title, description, category, index_status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		page.ID, page.Slug, page.Query, chatJSON, page.ContentMDX, page.Title,
		page.Description, page.Category, string(page.IndexStatus), now, now,
	)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return eris.Wrapf(ErrConflict, "postgres: page %s already exists", page.Slug)
		}
		return eris.Wrapf(err, "postgres: insert page %s", page.Slug)
	}
	return nil
}

func (s *PostgresStore) GetPage(ctx context.Context, slug string) (*model.Page, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+pageColumns+` FROM pages WHERE slug = $1`, slug)
	p, err := scanPgPage(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "postgres: page %s", slug)
		}
		return nil, eris.Wrapf(err, "postgres: get page %s", slug)
	}
	return p, nil
}

func (s *PostgresStore) PageExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM pages WHERE slug = $1)`, slug).Scan(&exists)
	return exists, eris.Wrapf(err, "postgres: page exists %s", slug)
}

func (s *PostgresStore) ListPages(ctx context.Context, filter PageFilter) ([]model.Page, error) {
	query := `SELECT ` + pageColumns + ` FROM pages WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Category != "" {
		query += fmt.Sprintf(` AND category = $%d`, argIdx)
		args = append(args, filter.Category)
		argIdx++
	}
	if filter.IndexStatus != "" {
		query += fmt.Sprintf(` AND index_status = $%d`, argIdx)
		args = append(args, string(filter.IndexStatus))
		argIdx++
	}
	query += ` ORDER BY updated_at DESC`

	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, pageLimit(filter.Limit))
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list pages")
	}
	defer rows.Close()

	var pages []model.Page
	for rows.Next() {
		p, err := scanPgPage(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan page")
		}
		pages = append(pages, *p)
	}
	return pages, eris.Wrap(rows.Err(), "postgres: list pages iterate")
}

func (s *PostgresStore) SetIndexStatus(ctx context.Context, slug string, status model.IndexStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE pages SET index_status = $1, updated_at = $2 WHERE slug = $3`,
		string(status), time.Now().UTC(), slug,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set index status %s", slug)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: page %s", slug)
	}
	return nil
}

func (s *PostgresStore) IncrementViews(ctx context.Context, slug string) error {
	_, err := s.pool.Exec(ctx, `UPDATE pages SET views = views + 1 WHERE slug = $1`, slug)
	return eris.Wrapf(err, "postgres: increment views %s", slug)
}

func scanPgPage(row pgx.Row) (*model.Page, error) {
	var p model.Page
	var chatJSON []byte
	if err := row.Scan(&p.ID, &p.Slug, &p.Query, &chatJSON, &p.ContentMDX, &p.Title,
		&p.Description, &p.Category, &p.IndexStatus, &p.Views, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if len(chatJSON) > 0 {
		if err := json.Unmarshal(chatJSON, &p.ChatContext); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal chat context")
		}
	}
	return &p, nil
}

// --- Affiliate partners ---

func (s *PostgresStore) ListActivePartners(ctx context.Context, category string) ([]model.AffiliatePartner, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, affiliate_url, category, subcategory, is_active FROM affiliate_partners
		 WHERE category = $1 AND is_active ORDER BY name`,
		category,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list partners %s", category)
	}
	defer rows.Close()

	var partners []model.AffiliatePartner
	for rows.Next() {
		var p model.AffiliatePartner
		if err := rows.Scan(&p.ID, &p.Name, &p.AffiliateURL, &p.Category, &p.Subcategory, &p.IsActive); err != nil {
			return nil, eris.Wrap(err, "postgres: scan partner")
		}
		partners = append(partners, p)
	}
	return partners, eris.Wrap(rows.Err(), "postgres: list partners iterate")
}

func (s *PostgresStore) UpsertPartners(ctx context.Context, partners []model.AffiliatePartner) (int64, error) {
	rows := make([][]any, 0, len(partners))
	for i := range partners {
		p := &partners[i]
		if p.ID == "" {
			p.ID = uuid.New().String()
		}
		rows = append(rows, []any{p.ID, p.Name, p.AffiliateURL, p.Category, p.Subcategory, p.IsActive})
	}
	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "affiliate_partners",
		Columns:      []string{"id", "name", "affiliate_url", "category", "subcategory", "is_active"},
		ConflictKeys: []string{"id"},
	}, rows)
	return n, eris.Wrap(err, "postgres: upsert partners")
}

// --- Profiles ---

const profileColumns = `id, COALESCE(username, ''), avatar_url, reputation_points, reputation_rank, created_at`

func (s *PostgresStore) EnsureProfile(ctx context.Context, userID string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO profiles (id, reputation_points, reputation_rank, created_at) VALUES ($1, 0, $2, $3)
		 ON CONFLICT (id) DO NOTHING`,
		userID, model.RankFor(0), time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: ensure profile %s", userID)
}

func (s *PostgresStore) GetProfile(ctx context.Context, userID string) (*model.Profile, error) {
	return s.getProfile(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, userID)
}

func (s *PostgresStore) GetProfileByUsername(ctx context.Context, username string) (*model.Profile, error) {
	return s.getProfile(ctx, `SELECT `+profileColumns+` FROM profiles WHERE username = $1`, username)
}

func (s *PostgresStore) getProfile(ctx context.Context, query, arg string) (*model.Profile, error) {
	var p model.Profile
	err := s.pool.QueryRow(ctx, query, arg).
		Scan(&p.ID, &p.Username, &p.AvatarURL, &p.ReputationPoints, &p.ReputationRank, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "postgres: profile %s", arg)
		}
		return nil, eris.Wrapf(err, "postgres: get profile %s", arg)
	}
	return &p, nil
}

func (s *PostgresStore) UpdateProfile(ctx context.Context, profile *model.Profile) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE profiles SET username = $1, avatar_url = $2 WHERE id = $3`,
		nullable(profile.Username), profile.AvatarURL, profile.ID,
	)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return eris.Wrapf(ErrConflict, "postgres: username %s taken", profile.Username)
		}
		return eris.Wrapf(err, "postgres: update profile %s", profile.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: profile %s", profile.ID)
	}
	return nil
}

func (s *PostgresStore) AddReputation(ctx context.Context, userID string, delta int) (*model.Profile, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: add reputation begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var points int
	err = tx.QueryRow(ctx,
		`UPDATE profiles SET reputation_points = GREATEST(reputation_points + $1, 0) WHERE id = $2
		 RETURNING reputation_points`,
		delta, userID,
	).Scan(&points)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "postgres: profile %s", userID)
		}
		return nil, eris.Wrapf(err, "postgres: add reputation %s", userID)
	}

	rank := model.RankFor(points)
	if _, err := tx.Exec(ctx, `UPDATE profiles SET reputation_rank = $1 WHERE id = $2`, rank, userID); err != nil {
		return nil, eris.Wrapf(err, "postgres: set rank %s", userID)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "postgres: add reputation commit")
	}

	return &model.Profile{ID: userID, ReputationPoints: points, ReputationRank: rank}, nil
}

// --- Comments ---

const commentSelect = `SELECT c.id, c.page_slug, c.user_id, c.user_email, COALESCE(c.parent_id, ''), c.content, c.created_at,
	(SELECT COUNT(*) FROM comment_likes l WHERE l.comment_id = c.id),
	EXISTS (SELECT 1 FROM comment_likes l WHERE l.comment_id = c.id AND l.user_id = $1),
	COALESCE(p.username, '')
FROM comments c LEFT JOIN profiles p ON p.id = c.user_id`

func (s *PostgresStore) CreateComment(ctx context.Context, c *model.Comment) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	c.CreatedAt = time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO comments (id, page_slug, user_id, user_email, parent_id, content, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.ID, c.PageSlug, c.UserID, c.UserEmail, nullable(c.ParentID), c.Content, c.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert comment on %s", c.PageSlug)
}

func (s *PostgresStore) GetComment(ctx context.Context, id string) (*model.Comment, error) {
	rows, err := s.pool.Query(ctx, commentSelect+` WHERE c.id = $2`, "", id)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get comment %s", id)
	}
	comments, err := collectPgComments(rows)
	if err != nil {
		return nil, err
	}
	if len(comments) == 0 {
		return nil, eris.Wrapf(ErrNotFound, "postgres: comment %s", id)
	}
	return &comments[0], nil
}

func (s *PostgresStore) ListComments(ctx context.Context, pageSlug, viewerID string) ([]model.Comment, error) {
	rows, err := s.pool.Query(ctx, commentSelect+` WHERE c.page_slug = $2 ORDER BY c.created_at ASC`, viewerID, pageSlug)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list comments %s", pageSlug)
	}
	return collectPgComments(rows)
}

func (s *PostgresStore) ListUserComments(ctx context.Context, userID string, limit int) ([]model.Comment, error) {
	rows, err := s.pool.Query(ctx,
		commentSelect+` WHERE c.user_id = $2 AND c.parent_id IS NULL ORDER BY c.created_at DESC LIMIT $3`,
		userID, userID, pageLimit(limit),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list user comments %s", userID)
	}
	return collectPgComments(rows)
}

func collectPgComments(rows pgx.Rows) ([]model.Comment, error) {
	defer rows.Close()
	var comments []model.Comment
	for rows.Next() {
		var c model.Comment
		if err := rows.Scan(&c.ID, &c.PageSlug, &c.UserID, &c.UserEmail, &c.ParentID, &c.Content,
			&c.CreatedAt, &c.LikesCount, &c.UserLiked, &c.Username); err != nil {
			return nil, eris.Wrap(err, "postgres: scan comment")
		}
		comments = append(comments, c)
	}
	return comments, eris.Wrap(rows.Err(), "postgres: list comments iterate")
}

func (s *PostgresStore) DeleteComment(ctx context.Context, id, userID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM comments WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete comment %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: comment %s", id)
	}
	return nil
}

func (s *PostgresStore) ToggleLike(ctx context.Context, commentID, userID string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM comment_likes WHERE comment_id = $1 AND user_id = $2`, commentID, userID)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: unlike comment %s", commentID)
	}
	if tag.RowsAffected() > 0 {
		return false, nil
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO comment_likes (comment_id, user_id, created_at) VALUES ($1, $2, $3)
		 ON CONFLICT DO NOTHING`,
		commentID, userID, time.Now().UTC(),
	)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: like comment %s", commentID)
	}
	return true, nil
}

// --- Ratings ---

func (s *PostgresStore) UpsertRating(ctx context.Context, r *model.Rating) (bool, error) {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	r.CreatedAt = time.Now().UTC()

	var inserted bool
	err := s.pool.QueryRow(ctx,
		`INSERT INTO ratings (id, page_slug, user_id, score, created_at) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (page_slug, user_id) DO UPDATE SET score = EXCLUDED.score
		 RETURNING id, (xmax = 0)`,
		r.ID, r.PageSlug, r.UserID, r.Score, r.CreatedAt,
	).Scan(&r.ID, &inserted)
	return inserted, eris.Wrapf(err, "postgres: upsert rating %s", r.PageSlug)
}

func (s *PostgresStore) RatingSummary(ctx context.Context, pageSlug, viewerID string) (*model.RatingSummary, error) {
	var sum model.RatingSummary
	var userScore *int
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(AVG(score), 0)::float8, COUNT(*),
		        (SELECT score::int FROM ratings WHERE page_slug = $1 AND user_id = $2)
		 FROM ratings WHERE page_slug = $1`,
		pageSlug, viewerID,
	).Scan(&sum.Average, &sum.Count, &userScore)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: rating summary %s", pageSlug)
	}
	sum.UserScore = userScore
	return &sum, nil
}

func (s *PostgresStore) ListUserRatings(ctx context.Context, userID string, limit int) ([]model.Rating, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, page_slug, user_id, score::int, created_at FROM ratings
		 WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`,
		userID, pageLimit(limit),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list user ratings %s", userID)
	}
	defer rows.Close()

	var ratings []model.Rating
	for rows.Next() {
		var r model.Rating
		if err := rows.Scan(&r.ID, &r.PageSlug, &r.UserID, &r.Score, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan rating")
		}
		ratings = append(ratings, r)
	}
	return ratings, eris.Wrap(rows.Err(), "postgres: list user ratings iterate")
}

// --- Referrals ---

const referralColumns = `id, referrer_id, visitor_id, page_slug, ref_code, clicked_at, converted, converted_at, commission_total, commission_user`

func (s *PostgresStore) CreateReferral(ctx context.Context, r *model.Referral) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	r.ClickedAt = time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO referrals (id, referrer_id, visitor_id, page_slug, ref_code, clicked_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		r.ID, r.ReferrerID, r.VisitorID, r.PageSlug, r.RefCode, r.ClickedAt,
	)
	return eris.Wrapf(err, "postgres: insert referral %s", r.RefCode)
}

func (s *PostgresStore) GetReferral(ctx context.Context, id string) (*model.Referral, error) {
	r, err := scanPgReferral(s.pool.QueryRow(ctx, `SELECT `+referralColumns+` FROM referrals WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "postgres: referral %s", id)
		}
		return nil, eris.Wrapf(err, "postgres: get referral %s", id)
	}
	return r, nil
}

func (s *PostgresStore) ListReferrals(ctx context.Context, referrerID string) ([]model.Referral, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+referralColumns+` FROM referrals WHERE referrer_id = $1 ORDER BY clicked_at DESC`,
		referrerID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list referrals %s", referrerID)
	}
	defer rows.Close()

	var refs []model.Referral
	for rows.Next() {
		r, err := scanPgReferral(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan referral")
		}
		refs = append(refs, *r)
	}
	return refs, eris.Wrap(rows.Err(), "postgres: list referrals iterate")
}

func (s *PostgresStore) ConvertReferral(ctx context.Context, id string, conv Conversion) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE referrals SET converted = true, converted_at = $1, commission_total = $2, commission_user = $3
		 WHERE id = $4 AND NOT converted`,
		conv.ConvertedAt, conv.Total, conv.User, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: convert referral %s", id)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	if _, err := s.GetReferral(ctx, id); err != nil {
		return err
	}
	return eris.Wrapf(ErrConflict, "postgres: referral %s already converted", id)
}

func scanPgReferral(row pgx.Row) (*model.Referral, error) {
	var r model.Referral
	err := row.Scan(&r.ID, &r.ReferrerID, &r.VisitorID, &r.PageSlug, &r.RefCode, &r.ClickedAt,
		&r.Converted, &r.ConvertedAt, &r.CommissionTotal, &r.CommissionUser)
	return &r, err
}

// --- Payouts ---

const payoutColumns = `id, user_id, amount, paypal_email, status, requested_at, processed_at, failure_reason`

func (s *PostgresStore) CreatePayout(ctx context.Context, p *model.Payout) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.Status == "" {
		p.Status = model.PayoutPending
	}
	p.RequestedAt = time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO payouts (id, user_id, amount, paypal_email, status, requested_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		p.ID, p.UserID, p.Amount, p.PaypalEmail, string(p.Status), p.RequestedAt,
	)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return eris.Wrapf(ErrConflict, "postgres: open payout exists for %s", p.UserID)
		}
		return eris.Wrapf(err, "postgres: insert payout %s", p.UserID)
	}
	return nil
}

func (s *PostgresStore) GetPayout(ctx context.Context, id string) (*model.Payout, error) {
	p, err := scanPgPayout(s.pool.QueryRow(ctx, `SELECT `+payoutColumns+` FROM payouts WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "postgres: payout %s", id)
		}
		return nil, eris.Wrapf(err, "postgres: get payout %s", id)
	}
	return p, nil
}

func (s *PostgresStore) ListPayouts(ctx context.Context, filter PayoutFilter) ([]model.Payout, error) {
	query := `SELECT ` + payoutColumns + ` FROM payouts WHERE true`
	args := []any{}
	argIdx := 1

	if filter.UserID != "" {
		query += fmt.Sprintf(` AND user_id = $%d`, argIdx)
		args = append(args, filter.UserID)
		argIdx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultPayoutLimit
	}
	query += fmt.Sprintf(` ORDER BY requested_at DESC LIMIT $%d`, argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list payouts")
	}
	defer rows.Close()

	var payouts []model.Payout
	for rows.Next() {
		p, err := scanPgPayout(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan payout")
		}
		payouts = append(payouts, *p)
	}
	return payouts, eris.Wrap(rows.Err(), "postgres: list payouts iterate")
}

func (s *PostgresStore) UpdatePayoutStatus(ctx context.Context, id string, change StatusChange) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE payouts SET status = $1, failure_reason = $2, processed_at = COALESCE($3, processed_at)
		 WHERE id = $4 AND status = $5`,
		string(change.To), change.FailureReason, change.ProcessedAt, id, string(change.From),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update payout %s", id)
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.GetPayout(ctx, id); err != nil {
			return err
		}
		return eris.Wrapf(ErrConflict, "postgres: payout %s is no longer %s", id, change.From)
	}
	return nil
}

func scanPgPayout(row pgx.Row) (*model.Payout, error) {
	var p model.Payout
	err := row.Scan(&p.ID, &p.UserID, &p.Amount, &p.PaypalEmail, &p.Status, &p.RequestedAt,
		&p.ProcessedAt, &p.FailureReason)
	return &p, err
}

// chatContext normalizes a nil slice so the column stores [] instead of null.
func chatContext(qa []model.QA) []model.QA {
	if qa == nil {
		return []model.QA{}
	}
	return qa
}
