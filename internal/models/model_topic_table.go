package models

import "time"

type Topic struct {
	Id string `json:"id" db:"id"`
	// Title 题目，通常以 "Would you rather" 开头
	Title string `json:"title" db:"title"`
	// OptionA 选项 A
	OptionA string `json:"option_a" db:"option_a"`
	// OptionB 选项 B
	OptionB string `json:"option_b" db:"option_b"`
	// Author 发布者身份
	Author string `json:"author" db:"author"`
	// CreatedAt 服务端时间戳，nil 表示尚未落定
	CreatedAt *time.Time `json:"created_at" db:"created_at"`
}

// CreatedOr 服务端时间戳未落定前按 now 处理
func (t Topic) CreatedOr(now time.Time) time.Time {
	if t.CreatedAt == nil {
		return now
	}
	return *t.CreatedAt
}
