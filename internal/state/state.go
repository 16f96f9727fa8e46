package state

import "github.com/dukerupert/shoplist/internal/model"

// State is the snapshot a presentation layer renders. Values handed out by
// a Controller are copies and never change afterwards.
type State struct {
	Items            []model.ShoppingItem `json:"items"`
	ArchivedItems    []model.ShoppingItem `json:"archived_items"`
	Categories       []string             `json:"categories"`
	SearchQuery      string               `json:"search_query"`
	SelectedPriority *model.Priority      `json:"selected_priority"`
	SelectedCategory *string              `json:"selected_category"`
	Loading          bool                 `json:"is_loading"`
	Error            *string              `json:"error"`
}

func (s State) clone() State {
	out := s
	out.Items = append([]model.ShoppingItem{}, s.Items...)
	out.ArchivedItems = append([]model.ShoppingItem{}, s.ArchivedItems...)
	out.Categories = append([]string{}, s.Categories...)
	if s.SelectedPriority != nil {
		p := *s.SelectedPriority
		out.SelectedPriority = &p
	}
	if s.SelectedCategory != nil {
		c := *s.SelectedCategory
		out.SelectedCategory = &c
	}
	if s.Error != nil {
		e := *s.Error
		out.Error = &e
	}
	return out
}
