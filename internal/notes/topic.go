package notes

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidTopic is returned for a topic outside the fixed set
var ErrInvalidTopic = errors.New("invalid topic")

// Topic is the subject area of a lecture
type Topic string

const (
	TopicComputerScience Topic = "Computer Science"
	TopicMathematics     Topic = "Mathematics"
	TopicHistory         Topic = "History"
	TopicScience         Topic = "Science"
	TopicBusiness        Topic = "Business"
	TopicLiterature      Topic = "Literature"
	TopicOther           Topic = "Other"
)

var topics = []Topic{
	TopicComputerScience,
	TopicMathematics,
	TopicHistory,
	TopicScience,
	TopicBusiness,
	TopicLiterature,
	TopicOther,
}

// Topics returns the supported topics in display order
func Topics() []Topic {
	out := make([]Topic, len(topics))
	copy(out, topics)
	return out
}

// ParseTopic matches s against the topic names, ignoring case. Hyphens and
// underscores count as spaces, so "computer-science" is accepted.
func ParseTopic(s string) (Topic, error) {
	norm := strings.Join(strings.Fields(strings.NewReplacer("-", " ", "_", " ").Replace(s)), " ")
	for _, t := range topics {
		if strings.EqualFold(norm, string(t)) {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidTopic, s)
}

// Slug returns the lowercase hyphenated form used on the command line
func (t Topic) Slug() string {
	return strings.ReplaceAll(strings.ToLower(string(t)), " ", "-")
}

func (t Topic) String() string {
	return string(t)
}
