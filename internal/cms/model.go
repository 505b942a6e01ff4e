package cms

import (
	"html/template"
	"time"
)

// DefaultPerPage is the page size of the blog index.
const DefaultPerPage = 10

// Post is a published blog post with sanitised HTML.
type Post struct {
	ID            int64         `json:"id"`
	Slug          string        `json:"slug"`
	Date          time.Time     `json:"date"`
	Title         string        `json:"title"`
	ContentHTML   template.HTML `json:"contentHtml"`
	ExcerptHTML   template.HTML `json:"excerptHtml"`
	Excerpt       string        `json:"excerpt"`
	FeaturedImage *Image        `json:"featuredImage,omitempty"`
	Author        string        `json:"author,omitempty"`
}

// Image is a post's featured media.
type Image struct {
	URL string `json:"url"`
	Alt string `json:"alt"`
}

// PostList is one page of posts.
type PostList struct {
	Posts      []Post `json:"posts"`
	Page       int    `json:"page"`
	TotalPages int    `json:"totalPages"`
}

// HasNext reports whether a later page exists.
func (l *PostList) HasNext() bool { return l.Page < l.TotalPages }

// HasPrev reports whether an earlier page exists.
func (l *PostList) HasPrev() bool { return l.Page > 1 }
