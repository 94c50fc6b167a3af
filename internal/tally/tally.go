package tally

import (
	"github.com/samber/lo"

	"wyr/internal/models"
)

type Tally struct {
	VotesA       int `json:"votes_a"`
	VotesB       int `json:"votes_b"`
	CommentCount int `json:"comment_count"`
}

func (t Tally) Total() int {
	return t.VotesA + t.VotesB
}

// Percentages 两侧独立四舍五入，和可能偏离 100 一个点
func (t Tally) Percentages() (a, b int) {
	total := t.Total()
	return Percentage(t.VotesA, total), Percentage(t.VotesB, total)
}

// Percentage rounds 100*n/total half up; 0 when total is 0.
func Percentage(n, total int) int {
	if total <= 0 || n <= 0 {
		return 0
	}
	return (200*n + total) / (2 * total)
}

// Aggregate derives a Tally for every topic from the two latest snapshots.
// Comments pointing at unknown topics are dropped.
func Aggregate(topics []models.Topic, comments []models.Comment) map[string]Tally {
	byTopic := lo.GroupBy(comments, func(c models.Comment) string {
		return c.TopicId
	})

	out := make(map[string]Tally, len(topics))
	for _, topic := range topics {
		var t Tally
		for _, c := range byTopic[topic.Id] {
			switch r := Classify(c).(type) {
			case models.VoteRecord:
				if r.Choice == models.ChoiceA {
					t.VotesA++
				} else {
					t.VotesB++
				}
			case models.DiscussionComment:
				t.CommentCount++
			}
		}
		out[topic.Id] = t
	}
	return out
}

// Partition splits comments into votes and discussion, keeping order.
func Partition(comments []models.Comment) ([]models.VoteRecord, []models.DiscussionComment) {
	var votes []models.VoteRecord
	var discussion []models.DiscussionComment
	for _, c := range comments {
		switch r := Classify(c).(type) {
		case models.VoteRecord:
			votes = append(votes, r)
		case models.DiscussionComment:
			discussion = append(discussion, r)
		}
	}
	return votes, discussion
}
