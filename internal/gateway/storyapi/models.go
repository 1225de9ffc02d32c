package storyapi

import "storysync/internal/domain"

// envelope covers every response shape the API has shipped. The error flag
// plus message pair is common to all operations; payload fields differ per
// endpoint and per API generation.
type envelope struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`

	ListStory []storyPayload `json:"listStory"`
	Stories   []storyPayload `json:"stories"`

	Story *storyPayload `json:"story"`
	Data  *storyPayload `json:"data"`

	LoginResult *loginResult `json:"loginResult"`
}

type loginResult struct {
	Token  string `json:"token"`
	UserID string `json:"userId"`
	Name   string `json:"name"`
}

type storyPayload struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	PhotoURL    string   `json:"photoUrl"`
	Photo       string   `json:"photo"`
	CreatedAt   string   `json:"createdAt"`
	Lat         *float64 `json:"lat"`
	Lon         *float64 `json:"lon"`
}

// storyList resolves the historical list shapes in order: listStory first,
// then stories. Absent both, the list is empty.
func (e *envelope) storyList() []storyPayload {
	if e.ListStory != nil {
		return e.ListStory
	}
	if e.Stories != nil {
		return e.Stories
	}
	return nil
}

// storyDetail resolves the historical detail shapes in order: story first,
// then data.
func (e *envelope) storyDetail() *storyPayload {
	if e.Story != nil {
		return e.Story
	}
	return e.Data
}

// toDomain canonicalizes one story-shaped object: the photo URL falls back
// from photoUrl to photo to empty, and a half-present coordinate pair is
// dropped entirely.
func (p storyPayload) toDomain() domain.Story {
	photoURL := p.PhotoURL
	if photoURL == "" {
		photoURL = p.Photo
	}

	story := domain.Story{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		PhotoURL:    photoURL,
		CreatedAt:   p.CreatedAt,
	}
	if p.Lat != nil && p.Lon != nil {
		story.Lat = p.Lat
		story.Lon = p.Lon
	}
	return story
}

func toDomainList(payloads []storyPayload) []domain.Story {
	stories := make([]domain.Story, 0, len(payloads))
	for _, p := range payloads {
		stories = append(stories, p.toDomain())
	}
	return stories
}
