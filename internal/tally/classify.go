package tally

import (
	"strings"

	"wyr/internal/models"
)

// VotePrefix 投票记录的文本前缀。编码和分类都只引用这一个常量，
// 修改它会让历史投票全部被识别为普通评论。
const VotePrefix = "Voted for option "

// IsVote 文本以 VotePrefix 开头且 Choice 合法
func IsVote(c models.Comment) bool {
	return strings.HasPrefix(c.Text, VotePrefix) && c.Choice.Valid()
}

// Classify decodes a stored comment into its record variant.
func Classify(c models.Comment) models.Record {
	if IsVote(c) {
		return models.VoteRecord{
			Id:        c.Id,
			TopicId:   c.TopicId,
			Choice:    c.Choice,
			Author:    c.Author,
			CreatedAt: c.CreatedAt,
		}
	}
	return models.DiscussionComment{
		Id:        c.Id,
		TopicId:   c.TopicId,
		Text:      c.Text,
		Author:    c.Author,
		Votes:     c.Votes,
		CreatedAt: c.CreatedAt,
	}
}

// VoteText 生成投票记录文本
func VoteText(choice models.Choice) string {
	return VotePrefix + string(choice)
}

// EncodeVote is the inverse of Classify for votes.
func EncodeVote(v models.VoteRecord) models.Comment {
	return models.Comment{
		Id:        v.Id,
		TopicId:   v.TopicId,
		Text:      VoteText(v.Choice),
		Author:    v.Author,
		Choice:    v.Choice,
		CreatedAt: v.CreatedAt,
	}
}
