package mapper

import "time"

// JSON payloads returned by the HTTP API.

type Course struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Price       string `json:"price"`
}

type Block struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	Position int    `json:"position"`
}

type CourseBlocks struct {
	Course *Course  `json:"course"`
	Blocks []*Block `json:"blocks"`
}

type CourseList struct {
	Courses []*Course `json:"courses"`
}

// Content is one reading step. NextBlockID and NextSubBlockID address the
// request for the step after it.
type Content struct {
	Type           string `json:"type"`
	ID             int64  `json:"id"`
	Title          string `json:"title"`
	Content        string `json:"content"`
	CourseID       int64  `json:"course_id"`
	NextBlockID    int64  `json:"next_block_id"`
	NextSubBlockID *int64 `json:"next_subblock_id"`
}

type ContentList struct {
	Contents []*Content `json:"contents"`
	TargetID string     `json:"target_id"`
}

type Order struct {
	ID         int64     `json:"id"`
	CourseID   int64     `json:"course_id"`
	TotalPrice string    `json:"total_price"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type CheckoutForm struct {
	Course     *Course `json:"course"`
	TotalPrice string  `json:"total_price"`
	Message    string  `json:"message,omitempty"`
}

type PaymentStatus struct {
	Order   *Order `json:"order"`
	Outcome string `json:"outcome"`
	Message string `json:"message"`
}
