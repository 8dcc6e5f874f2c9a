package course

import (
	"time"

	"github.com/shopspring/decimal"
)

type Course struct {
	ID          int64
	Title       string
	Description string
	Price       decimal.Decimal
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Block struct {
	ID       int64
	CourseID int64
	Title    string
	Content  string
	Position int
}

type SubBlock struct {
	ID       int64
	BlockID  int64
	Title    string
	Content  string
	Position int
}

type ContentKind string

const (
	KindBlock    ContentKind = "block"
	KindSubBlock ContentKind = "subblock"
)

// Content is one step of the reading order: a block followed by its
// sub-blocks, then the next block.
type Content struct {
	Kind     ContentKind
	ID       int64
	BlockID  int64
	Title    string
	Content  string
	Position int
}

func blockContent(b Block) Content {
	return Content{Kind: KindBlock, ID: b.ID, BlockID: b.ID, Title: b.Title, Content: b.Content, Position: b.Position}
}

func subBlockContent(sb SubBlock) Content {
	return Content{Kind: KindSubBlock, ID: sb.ID, BlockID: sb.BlockID, Title: sb.Title, Content: sb.Content, Position: sb.Position}
}

// SubBlockID is set only for sub-block content.
func (c Content) SubBlockID() *int64 {
	if c.Kind != KindSubBlock {
		return nil
	}
	id := c.ID
	return &id
}
