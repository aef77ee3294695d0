package api

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/tomkillen/koans-api/internal/domain"
)

// Difficulty accepts either the numeric rank (1-5) or its label
// (easy, medium, difficult, challenging, extreme) in JSON. It always
// marshals as the numeric rank.
type Difficulty int

// UnmarshalJSON implements json.Unmarshaler.
func (d *Difficulty) UnmarshalJSON(data []byte) error {
	var rank int
	if err := json.Unmarshal(data, &rank); err == nil {
		if !domain.IsDifficultyValue(rank) {
			return fmt.Errorf("difficulty %d outside range %d-%d", rank, domain.MinDifficulty, domain.MaxDifficulty)
		}
		*d = Difficulty(rank)
		return nil
	}

	var label string
	if err := json.Unmarshal(data, &label); err != nil {
		return fmt.Errorf("difficulty must be a rank or label")
	}
	rank, ok := domain.ParseDifficultyLabel(label)
	if !ok {
		return fmt.Errorf("unknown difficulty %q", label)
	}
	*d = Difficulty(rank)
	return nil
}

// ActivityView is the wire form of a catalog activity.
type ActivityView struct {
	ID          string    `json:"id"`
	Created     time.Time `json:"created"`
	Title       string    `json:"title"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	Duration    int       `json:"duration"`
	Difficulty  int       `json:"difficulty"`
	Content     string    `json:"content"`
}

// ActivityDetailView adds the caller's completion status to a single
// activity fetch.
type ActivityDetailView struct {
	ActivityView
	Completed bool `json:"completed"`
}

// ActivityPageResponse packages one page of a filtered listing.
type ActivityPageResponse struct {
	Page       int            `json:"page"`
	PageSize   int            `json:"pageSize"`
	Total      int            `json:"total"`
	Activities []ActivityView `json:"activities"`
}

// CategoryView is one aggregated category.
type CategoryView struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// CategoryPageResponse packages one page of the category aggregation.
type CategoryPageResponse struct {
	Page       int            `json:"page"`
	PageSize   int            `json:"pageSize"`
	Total      int            `json:"total"`
	Categories []CategoryView `json:"categories"`
}

// CreateActivityRequest is the payload for POST /v1/activities. All
// fields are required.
type CreateActivityRequest struct {
	Title       string      `json:"title"`
	Category    string      `json:"category"`
	Description string      `json:"description"`
	Duration    *int        `json:"duration"`
	Difficulty  *Difficulty `json:"difficulty"`
	Content     string      `json:"content"`
}

// ActivityInfo converts the request into the domain shape. Field-level
// validation happens in the catalog service.
func (r CreateActivityRequest) ActivityInfo() (domain.ActivityInfo, error) {
	if r.Duration == nil {
		return domain.ActivityInfo{}, fmt.Errorf("duration is required")
	}
	if r.Difficulty == nil {
		return domain.ActivityInfo{}, fmt.Errorf("difficulty is required")
	}
	return domain.ActivityInfo{
		Title:       r.Title,
		Category:    r.Category,
		Description: r.Description,
		Duration:    *r.Duration,
		Difficulty:  int(*r.Difficulty),
		Content:     r.Content,
	}, nil
}

// UpdateActivityRequest is the payload for PATCH /v1/activities/{id}.
// Absent fields keep their current values.
type UpdateActivityRequest struct {
	Title       *string     `json:"title"`
	Category    *string     `json:"category"`
	Description *string     `json:"description"`
	Duration    *int        `json:"duration"`
	Difficulty  *Difficulty `json:"difficulty"`
	Content     *string     `json:"content"`
}

// Update converts the request into the domain patch shape.
func (r UpdateActivityRequest) Update() domain.ActivityUpdate {
	update := domain.ActivityUpdate{
		Title:       r.Title,
		Category:    r.Category,
		Description: r.Description,
		Duration:    r.Duration,
		Content:     r.Content,
	}
	if r.Difficulty != nil {
		difficulty := int(*r.Difficulty)
		update.Difficulty = &difficulty
	}
	return update
}

// SetCompletedRequest is the payload for
// PUT /v1/activities/{id}/completed. The field is required so an empty
// body cannot silently uncomplete an activity.
type SetCompletedRequest struct {
	Completed *bool `json:"completed"`
}

// CreateUserRequest is the payload for POST /v1/user.
type CreateUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UpdateUserRequest is the payload for PATCH /v1/user. Absent fields
// keep their current values.
type UpdateUserRequest struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
}

// UserView is the wire form of the current user's profile.
type UserView struct {
	ID       string    `json:"id"`
	Created  time.Time `json:"created"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
	Roles    []string  `json:"roles"`
}

// CreatedResponse reports the id of a newly created resource.
type CreatedResponse struct {
	ID string `json:"id"`
}

// TokenResponse carries the bearer token issued for Basic credentials.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
}

// RenameCategoryRequest is the payload for PATCH /v1/categories/{name}.
type RenameCategoryRequest struct {
	NewName string `json:"newName"`
}

func toActivityView(activity domain.Activity) ActivityView {
	return ActivityView{
		ID:          activity.ID,
		Created:     activity.Created,
		Title:       activity.Title,
		Category:    activity.Category,
		Description: activity.Description,
		Duration:    activity.Duration,
		Difficulty:  activity.Difficulty,
		Content:     activity.Content,
	}
}

func toActivityPage(page domain.ActivityPage) ActivityPageResponse {
	resp := ActivityPageResponse{
		Page:       page.Page,
		PageSize:   page.PageSize,
		Total:      page.Total,
		Activities: make([]ActivityView, 0, len(page.Activities)),
	}
	for _, activity := range page.Activities {
		resp.Activities = append(resp.Activities, toActivityView(activity))
	}
	return resp
}

func toCategoryPage(page domain.CategoryPage) CategoryPageResponse {
	resp := CategoryPageResponse{
		Page:       page.Page,
		PageSize:   page.PageSize,
		Total:      page.Total,
		Categories: make([]CategoryView, 0, len(page.Categories)),
	}
	for _, category := range page.Categories {
		resp.Categories = append(resp.Categories, CategoryView{Name: category.Name, Count: category.Count})
	}
	return resp
}

func toUserView(user domain.User) UserView {
	roles := user.Roles
	if roles == nil {
		roles = []string{}
	}
	return UserView{
		ID:       user.ID,
		Created:  user.Created,
		Username: user.Username,
		Email:    user.Email,
		Roles:    roles,
	}
}
