package models

// Choice 二选一投票的选项标记
type Choice string

// Direction 评论点赞方向
type Direction string

const (
	ChoiceNone Choice = ""
	ChoiceA    Choice = "A"
	ChoiceB    Choice = "B"
)

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

const (
	CollectionTopics   = "topics"
	CollectionComments = "comments"
)

// Valid 是否为 A/B 之一
func (c Choice) Valid() bool {
	return c == ChoiceA || c == ChoiceB
}

// Delta 点赞方向对应的分值变化
func (d Direction) Delta() int {
	switch d {
	case DirectionUp:
		return 1
	case DirectionDown:
		return -1
	default:
		return 0
	}
}
