package course

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"courseshop-be/internal/logger"

	"go.uber.org/zap"
)

// Repository is the read-only catalog lookup used by checkout and the content guard.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*Course, error)
	List(ctx context.Context) ([]Course, error)
	Search(ctx context.Context, query string, limit int) ([]Course, error)
	ListBlocks(ctx context.Context, courseID int64) ([]Block, error)

	// NextContent returns the step after the given block, or after the given
	// sub-block when subBlockID is set. It returns nil at the end of the course.
	NextContent(ctx context.Context, courseID, blockID int64, subBlockID *int64) (*Content, error)
	// ContentUpTo returns every step from the start of the course through the
	// given block, or through the given sub-block when subBlockID is set.
	ContentUpTo(ctx context.Context, courseID, blockID int64, subBlockID *int64) ([]Content, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetByID(ctx context.Context, id int64) (*Course, error) {
	const q = `
		SELECT id, title, description, price, created_at, updated_at
		FROM courses
		WHERE id = $1
	`

	var c Course
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&c.ID, &c.Title, &c.Description, &c.Price, &c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCourseNotFound
	}
	if err != nil {
		logger.FromCtx(ctx).Error("failed to load course", zap.Int64("course_id", id), zap.Error(err))
		return nil, fmt.Errorf("get course %d: %w", id, err)
	}

	return &c, nil
}

const courseColumns = `id, title, description, price, created_at, updated_at`

func (r *repository) List(ctx context.Context) ([]Course, error) {
	q := `SELECT ` + courseColumns + ` FROM courses ORDER BY updated_at, created_at, id`

	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	return scanCourses(rows)
}

// Search matches the query against title and description, case-insensitively.
func (r *repository) Search(ctx context.Context, query string, limit int) ([]Course, error) {
	q := `SELECT ` + courseColumns + ` FROM courses
		WHERE title ILIKE $1 OR description ILIKE $1
		ORDER BY updated_at, created_at, id
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, q, likePattern(query), limit)
	if err != nil {
		return nil, fmt.Errorf("search courses: %w", err)
	}
	return scanCourses(rows)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likePattern(query string) string {
	return "%" + likeEscaper.Replace(strings.TrimSpace(query)) + "%"
}

func scanCourses(rows *sql.Rows) ([]Course, error) {
	defer rows.Close()

	var courses []Course
	for rows.Next() {
		var c Course
		if err := rows.Scan(&c.ID, &c.Title, &c.Description, &c.Price, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		courses = append(courses, c)
	}
	return courses, rows.Err()
}

func (r *repository) ListBlocks(ctx context.Context, courseID int64) ([]Block, error) {
	const q = `
		SELECT id, course_id, title, content, position
		FROM course_blocks
		WHERE course_id = $1
		ORDER BY position, id
	`

	rows, err := r.db.QueryContext(ctx, q, courseID)
	if err != nil {
		return nil, fmt.Errorf("list blocks for course %d: %w", courseID, err)
	}
	defer rows.Close()

	var blocks []Block
	for rows.Next() {
		var b Block
		if err := rows.Scan(&b.ID, &b.CourseID, &b.Title, &b.Content, &b.Position); err != nil {
			return nil, err
		}
		blocks = append(blocks, b)
	}

	return blocks, rows.Err()
}

const (
	blockColumns    = `id, course_id, title, content, position`
	subBlockColumns = `id, block_id, title, content, position`
)

func (r *repository) NextContent(ctx context.Context, courseID, blockID int64, subBlockID *int64) (*Content, error) {
	block, err := r.getBlock(ctx, courseID, blockID)
	if err != nil {
		return nil, err
	}

	// Positions are non-negative, so -1 selects the block's first sub-block.
	after := -1
	if subBlockID != nil {
		current, err := r.getSubBlock(ctx, blockID, *subBlockID)
		if err != nil {
			return nil, err
		}
		after = current.Position
	}

	next, err := r.firstSubBlock(ctx, blockID, after)
	if err != nil {
		return nil, err
	}
	if next != nil {
		c := subBlockContent(*next)
		return &c, nil
	}

	q := `SELECT ` + blockColumns + ` FROM course_blocks
		WHERE course_id = $1 AND position > $2
		ORDER BY position, id
		LIMIT 1`

	var b Block
	err = r.db.QueryRowContext(ctx, q, courseID, block.Position).
		Scan(&b.ID, &b.CourseID, &b.Title, &b.Content, &b.Position)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("next block after %d: %w", blockID, err)
	}
	c := blockContent(b)
	return &c, nil
}

func (r *repository) ContentUpTo(ctx context.Context, courseID, blockID int64, subBlockID *int64) ([]Content, error) {
	target, err := r.getBlock(ctx, courseID, blockID)
	if err != nil {
		return nil, err
	}

	var subBlocks []SubBlock
	if subBlockID != nil {
		sb, err := r.getSubBlock(ctx, blockID, *subBlockID)
		if err != nil {
			return nil, err
		}
		subBlocks, err = r.subBlocksUpTo(ctx, blockID, sb.Position)
		if err != nil {
			return nil, err
		}
	}

	q := `SELECT ` + blockColumns + ` FROM course_blocks
		WHERE course_id = $1 AND position <= $2
		ORDER BY position, id`

	rows, err := r.db.QueryContext(ctx, q, courseID, target.Position)
	if err != nil {
		return nil, fmt.Errorf("content up to block %d: %w", blockID, err)
	}
	defer rows.Close()

	var contents []Content
	for rows.Next() {
		var b Block
		if err := rows.Scan(&b.ID, &b.CourseID, &b.Title, &b.Content, &b.Position); err != nil {
			return nil, err
		}
		contents = append(contents, blockContent(b))
		if b.ID == blockID {
			for _, sb := range subBlocks {
				contents = append(contents, subBlockContent(sb))
			}
		}
	}
	return contents, rows.Err()
}

func (r *repository) getBlock(ctx context.Context, courseID, blockID int64) (*Block, error) {
	q := `SELECT ` + blockColumns + ` FROM course_blocks WHERE id = $1 AND course_id = $2`

	var b Block
	err := r.db.QueryRowContext(ctx, q, blockID, courseID).
		Scan(&b.ID, &b.CourseID, &b.Title, &b.Content, &b.Position)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrContentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get block %d: %w", blockID, err)
	}
	return &b, nil
}

func (r *repository) getSubBlock(ctx context.Context, blockID, subBlockID int64) (*SubBlock, error) {
	q := `SELECT ` + subBlockColumns + ` FROM course_subblocks WHERE id = $1 AND block_id = $2`

	var sb SubBlock
	err := r.db.QueryRowContext(ctx, q, subBlockID, blockID).
		Scan(&sb.ID, &sb.BlockID, &sb.Title, &sb.Content, &sb.Position)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrContentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get sub-block %d: %w", subBlockID, err)
	}
	return &sb, nil
}

// firstSubBlock returns the first sub-block of the block positioned after
// the given position, or nil when there is none.
func (r *repository) firstSubBlock(ctx context.Context, blockID int64, after int) (*SubBlock, error) {
	q := `SELECT ` + subBlockColumns + ` FROM course_subblocks
		WHERE block_id = $1 AND position > $2
		ORDER BY position, id
		LIMIT 1`

	var sb SubBlock
	err := r.db.QueryRowContext(ctx, q, blockID, after).
		Scan(&sb.ID, &sb.BlockID, &sb.Title, &sb.Content, &sb.Position)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("next sub-block in block %d: %w", blockID, err)
	}
	return &sb, nil
}

func (r *repository) subBlocksUpTo(ctx context.Context, blockID int64, position int) ([]SubBlock, error) {
	q := `SELECT ` + subBlockColumns + ` FROM course_subblocks
		WHERE block_id = $1 AND position <= $2
		ORDER BY position, id`

	rows, err := r.db.QueryContext(ctx, q, blockID, position)
	if err != nil {
		return nil, fmt.Errorf("sub-blocks of block %d: %w", blockID, err)
	}
	defer rows.Close()

	var out []SubBlock
	for rows.Next() {
		var sb SubBlock
		if err := rows.Scan(&sb.ID, &sb.BlockID, &sb.Title, &sb.Content, &sb.Position); err != nil {
			return nil, err
		}
		out = append(out, sb)
	}
	return out, rows.Err()
}
