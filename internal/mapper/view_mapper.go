package mapper

import (
	"strconv"

	"courseshop-be/internal/course"
	"courseshop-be/internal/order"
)

func MapCourseToView(c *course.Course) *Course {
	if c == nil {
		return nil
	}
	return &Course{
		ID:          c.ID,
		Title:       c.Title,
		Description: c.Description,
		Price:       c.Price.StringFixed(2),
	}
}

func MapBlocksToView(blocks []course.Block) []*Block {
	res := make([]*Block, 0, len(blocks))
	for _, b := range blocks {
		res = append(res, &Block{
			ID:       b.ID,
			Title:    b.Title,
			Content:  b.Content,
			Position: b.Position,
		})
	}
	return res
}

func MapCoursesToView(courses []course.Course) *CourseList {
	res := &CourseList{Courses: make([]*Course, 0, len(courses))}
	for i := range courses {
		res.Courses = append(res.Courses, MapCourseToView(&courses[i]))
	}
	return res
}

func MapContentToView(courseID int64, c *course.Content) *Content {
	if c == nil {
		return nil
	}
	return &Content{
		Type:           string(c.Kind),
		ID:             c.ID,
		Title:          c.Title,
		Content:        c.Content,
		CourseID:       courseID,
		NextBlockID:    c.BlockID,
		NextSubBlockID: c.SubBlockID(),
	}
}

// MapContentListToView targets the deepest requested step, sub-block first.
func MapContentListToView(courseID, blockID int64, subBlockID *int64, contents []course.Content) *ContentList {
	res := &ContentList{
		Contents: make([]*Content, 0, len(contents)),
		TargetID: "block-" + strconv.FormatInt(blockID, 10),
	}
	if subBlockID != nil {
		res.TargetID = "subblock-" + strconv.FormatInt(*subBlockID, 10)
	}
	for i := range contents {
		res.Contents = append(res.Contents, MapContentToView(courseID, &contents[i]))
	}
	return res
}

// MapOrderToView omits user and payment ids; they are internal.
func MapOrderToView(o *order.Order) *Order {
	if o == nil {
		return nil
	}
	return &Order{
		ID:         o.ID,
		CourseID:   o.CourseID,
		TotalPrice: o.TotalPrice.StringFixed(2),
		Status:     string(o.Status),
		CreatedAt:  o.CreatedAt,
		UpdatedAt:  o.UpdatedAt,
	}
}

func MapCheckoutFormToView(f *order.CheckoutForm) *CheckoutForm {
	return &CheckoutForm{
		Course:     MapCourseToView(f.Course),
		TotalPrice: f.TotalPrice.StringFixed(2),
		Message:    f.Message,
	}
}

func MapStatusToView(v *order.StatusView) *PaymentStatus {
	return &PaymentStatus{
		Order:   MapOrderToView(v.Order),
		Outcome: string(v.Outcome),
		Message: v.Message,
	}
}
