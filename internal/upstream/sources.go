package upstream

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/utafrali/contentsearch/internal/domain"
)

// socialTitleRunes is how much of a post becomes its title.
const socialTitleRunes = 100

// source describes one upstream service and how its items become documents.
type source struct {
	name    string
	path    string
	docType domain.DocumentType
	convert func(json.RawMessage) (domain.Document, error)
}

var sources = []source{
	{name: "content", path: "/api/v1/articles", docType: domain.DocumentTypeArticle, convert: convertArticle},
	{name: "projects", path: "/api/v1/projects", docType: domain.DocumentTypeProject, convert: convertProject},
	{name: "people", path: "/api/v1/people", docType: domain.DocumentTypePerson, convert: convertPerson},
	{name: "partners", path: "/api/v1/partners", docType: domain.DocumentTypePartner, convert: convertPartner},
	{name: "social", path: "/api/v1/posts", docType: domain.DocumentTypeSocialPost, convert: convertSocialPost},
	{name: "notifications", path: "/api/v1/notifications", docType: domain.DocumentTypeNotification, convert: convertNotification},
}

func lookupSource(name string) (source, bool) {
	for _, s := range sources {
		if s.name == name {
			return s, true
		}
	}
	return source{}, false
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// compactMetadata drops nil and empty values.
func compactMetadata(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		switch tv := v.(type) {
		case nil:
			continue
		case string:
			if tv == "" {
				continue
			}
		case []string:
			if len(tv) == 0 {
				continue
			}
		}
		out[k] = v
	}
	return out
}

func decode(raw json.RawMessage, dst any) error {
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode item: %w", err)
	}
	return nil
}

type article struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Content     string     `json:"content"`
	Language    string     `json:"language"`
	Tags        []string   `json:"tags"`
	Category    string     `json:"category"`
	AuthorID    string     `json:"author_id"`
	AuthorName  string     `json:"author_name"`
	Status      string     `json:"status"`
	PublishedAt *time.Time `json:"published_at"`
}

func convertArticle(raw json.RawMessage) (domain.Document, error) {
	var a article
	if err := decode(raw, &a); err != nil {
		return domain.Document{}, err
	}
	return domain.Document{
		DocumentID:   a.ID,
		DocumentType: domain.DocumentTypeArticle,
		Title:        a.Title,
		Content:      a.Content,
		Language:     orDefault(a.Language, "en"),
		AuthorID:     a.AuthorID,
		AuthorName:   a.AuthorName,
		Status:       a.Status,
		Metadata:     compactMetadata(map[string]any{"tags": a.Tags, "category": a.Category}),
		PublishedAt:  a.PublishedAt,
	}, nil
}

type project struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Language    string   `json:"language"`
	Category    string   `json:"category"`
	Location    string   `json:"location"`
	Budget      *float64 `json:"budget"`
	Status      string   `json:"status"`
}

func convertProject(raw json.RawMessage) (domain.Document, error) {
	var p project
	if err := decode(raw, &p); err != nil {
		return domain.Document{}, err
	}
	meta := map[string]any{"category": p.Category, "location": p.Location}
	if p.Budget != nil {
		meta["budget"] = *p.Budget
	}
	return domain.Document{
		DocumentID:   p.ID,
		DocumentType: domain.DocumentTypeProject,
		Title:        p.Name,
		Content:      p.Description,
		Language:     orDefault(p.Language, "en"),
		Status:       p.Status,
		Metadata:     compactMetadata(meta),
	}, nil
}

type person struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Bio          string `json:"bio"`
	Language     string `json:"language"`
	Role         string `json:"role"`
	Organization string `json:"organization"`
	Status       string `json:"status"`
}

func convertPerson(raw json.RawMessage) (domain.Document, error) {
	var p person
	if err := decode(raw, &p); err != nil {
		return domain.Document{}, err
	}
	return domain.Document{
		DocumentID:   p.ID,
		DocumentType: domain.DocumentTypePerson,
		Title:        p.Name,
		Content:      orDefault(p.Bio, p.Name),
		Language:     orDefault(p.Language, "en"),
		Status:       p.Status,
		Metadata:     compactMetadata(map[string]any{"role": p.Role, "organization": p.Organization}),
	}, nil
}

type partner struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Mission     string `json:"mission"`
	Location    string `json:"location"`
	Language    string `json:"language"`
	Type        string `json:"type"`
	Status      string `json:"status"`
}

func convertPartner(raw json.RawMessage) (domain.Document, error) {
	var p partner
	if err := decode(raw, &p); err != nil {
		return domain.Document{}, err
	}
	content := strings.Join(strings.Fields(p.Description+" "+p.Mission+" "+p.Location), " ")
	return domain.Document{
		DocumentID:   p.ID,
		DocumentType: domain.DocumentTypePartner,
		Title:        p.Name,
		Content:      orDefault(content, p.Name),
		Language:     orDefault(p.Language, "en"),
		Status:       p.Status,
		Metadata: compactMetadata(map[string]any{
			"type":     p.Type,
			"location": p.Location,
			"status":   p.Status,
		}),
	}, nil
}

type socialPost struct {
	ID          string     `json:"id"`
	Content     string     `json:"content"`
	Language    string     `json:"language"`
	Platform    string     `json:"platform"`
	MediaType   string     `json:"media_type"`
	AuthorID    string     `json:"author_id"`
	AuthorName  string     `json:"author_name"`
	Status      string     `json:"status"`
	PublishedAt *time.Time `json:"published_at"`
}

func convertSocialPost(raw json.RawMessage) (domain.Document, error) {
	var p socialPost
	if err := decode(raw, &p); err != nil {
		return domain.Document{}, err
	}
	return domain.Document{
		DocumentID:   p.ID,
		DocumentType: domain.DocumentTypeSocialPost,
		Title:        truncateRunes(p.Content, socialTitleRunes),
		Content:      p.Content,
		Language:     orDefault(p.Language, "en"),
		AuthorID:     p.AuthorID,
		AuthorName:   p.AuthorName,
		Status:       p.Status,
		Metadata:     compactMetadata(map[string]any{"platform": p.Platform, "media_type": p.MediaType}),
		PublishedAt:  p.PublishedAt,
	}, nil
}

type notification struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Message  string `json:"message"`
	Language string `json:"language"`
	Type     string `json:"type"`
	Priority any    `json:"priority"`
	Status   string `json:"status"`
}

func convertNotification(raw json.RawMessage) (domain.Document, error) {
	var n notification
	if err := decode(raw, &n); err != nil {
		return domain.Document{}, err
	}
	return domain.Document{
		DocumentID:   n.ID,
		DocumentType: domain.DocumentTypeNotification,
		Title:        n.Title,
		Content:      n.Message,
		Language:     orDefault(n.Language, "en"),
		Status:       n.Status,
		Metadata:     compactMetadata(map[string]any{"type": n.Type, "priority": n.Priority}),
	}, nil
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
