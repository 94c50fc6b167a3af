package models

import "time"

// Comment 评论表原始文档，投票记录和讨论评论共用这一结构，
// 解码后的形式见 Record
type Comment struct {
	Id string `json:"id" db:"id"`
	// TopicId 所属题目，不做外键约束
	TopicId string `json:"topic_id" db:"topic_id"`
	Text    string `json:"text" db:"text"`
	Author  string `json:"author" db:"author"`
	// Choice 仅投票记录携带
	Choice Choice `json:"choice,omitempty" db:"choice"`
	// Votes 评论得分
	Votes     int        `json:"votes" db:"votes"`
	CreatedAt *time.Time `json:"created_at" db:"created_at"`
}

func (c Comment) CreatedOr(now time.Time) time.Time {
	if c.CreatedAt == nil {
		return now
	}
	return *c.CreatedAt
}

// Record 为 VoteRecord 或 DiscussionComment
type Record interface {
	TopicRef() string
	record()
}

type VoteRecord struct {
	Id        string     `json:"id"`
	TopicId   string     `json:"topic_id"`
	Choice    Choice     `json:"choice"`
	Author    string     `json:"author"`
	CreatedAt *time.Time `json:"created_at"`
}

type DiscussionComment struct {
	Id        string     `json:"id"`
	TopicId   string     `json:"topic_id"`
	Text      string     `json:"text"`
	Author    string     `json:"author"`
	Votes     int        `json:"votes"`
	CreatedAt *time.Time `json:"created_at"`
}

func (v VoteRecord) TopicRef() string        { return v.TopicId }
func (d DiscussionComment) TopicRef() string { return d.TopicId }

func (VoteRecord) record()        {}
func (DiscussionComment) record() {}
