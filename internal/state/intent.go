package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dukerupert/shoplist/internal/model"
)

// ErrBadIntent wraps every rejection from DecodeIntent.
var ErrBadIntent = errors.New("bad intent")

// Intent is the wire form of a controller call, shared by the HTTP and
// websocket transports:
//
//	{"type":"add_item","item":{"name":"Milk","quantity":2}}
//	{"type":"set_search_query","query":"brea"}
//	{"type":"set_selected_priority","priority":"HIGH"}
//	{"type":"set_selected_category","category":null}
type Intent struct {
	Type     string              `json:"type"`
	Item     *model.ShoppingItem `json:"item,omitempty"`
	Query    string              `json:"query,omitempty"`
	Priority *model.Priority     `json:"priority,omitempty"`
	Category *string             `json:"category,omitempty"`
}

type wireIntent struct {
	Type     string          `json:"type"`
	Item     json.RawMessage `json:"item"`
	Query    string          `json:"query"`
	Priority *string         `json:"priority"`
	Category *string         `json:"category"`
}

func badIntent(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrBadIntent, fmt.Sprintf(format, args...))
}

// DecodeIntent parses and checks one intent. Item fields left out of an
// add_item payload take the defaults of a new item. The other item intents
// replace the stored record, so they must carry the whole item; only
// delete_item is satisfied by an id alone.
func DecodeIntent(data []byte) (Intent, error) {
	var w wireIntent
	if err := json.Unmarshal(data, &w); err != nil {
		return Intent{}, badIntent("invalid JSON: %v", err)
	}
	in := Intent{Type: w.Type}

	switch w.Type {
	case IntentAddItem, IntentUpdateItem, IntentDeleteItem, IntentToggleChecked,
		IntentArchiveItem, IntentRestoreItem:
		if len(w.Item) == 0 || string(w.Item) == "null" {
			return Intent{}, badIntent("%s requires an item", w.Type)
		}
		item, err := decodeItem(w.Type, w.Item)
		if err != nil {
			return Intent{}, err
		}
		in.Item = &item

	case IntentSetSearchQuery:
		in.Query = w.Query

	case IntentSetSelectedPriority:
		if w.Priority != nil && *w.Priority != "" {
			p := model.Priority(strings.ToUpper(strings.TrimSpace(*w.Priority)))
			if !p.Valid() {
				return Intent{}, badIntent("unknown priority %q", *w.Priority)
			}
			in.Priority = &p
		}

	case IntentSetSelectedCategory:
		if w.Category != nil && *w.Category != "" {
			in.Category = w.Category
		}

	case IntentDeleteAllArchived, IntentClearError:

	case "":
		return Intent{}, badIntent("missing type")
	default:
		return Intent{}, badIntent("unknown type %q", w.Type)
	}
	return in, nil
}

func decodeItem(typ string, raw json.RawMessage) (model.ShoppingItem, error) {
	var item model.ShoppingItem
	if typ == IntentAddItem {
		item = model.NewShoppingItem("")
	}
	if err := json.Unmarshal(raw, &item); err != nil {
		return model.ShoppingItem{}, badIntent("invalid item: %v", err)
	}

	switch {
	case typ == IntentAddItem:
		item.ID = 0
	case item.ID <= 0:
		return model.ShoppingItem{}, badIntent("%s requires an item id", typ)
	case typ != IntentDeleteItem && (strings.TrimSpace(item.Name) == "" || item.Quantity <= 0):
		return model.ShoppingItem{}, badIntent("%s requires the full item (name and quantity)", typ)
	}
	item.Priority = model.ParsePriority(string(item.Priority))
	return item, nil
}

// Apply dispatches in to the matching controller call.
func (c *Controller) Apply(in Intent) error {
	needItem := func() (model.ShoppingItem, error) {
		if in.Item == nil {
			return model.ShoppingItem{}, badIntent("%s requires an item", in.Type)
		}
		return *in.Item, nil
	}

	switch in.Type {
	case IntentAddItem, IntentUpdateItem, IntentDeleteItem, IntentToggleChecked,
		IntentArchiveItem, IntentRestoreItem:
		item, err := needItem()
		if err != nil {
			return err
		}
		switch in.Type {
		case IntentAddItem:
			c.AddItem(item)
		case IntentUpdateItem:
			c.UpdateItem(item)
		case IntentDeleteItem:
			c.DeleteItem(item)
		case IntentToggleChecked:
			c.ToggleChecked(item)
		case IntentArchiveItem:
			c.ArchiveItem(item)
		case IntentRestoreItem:
			c.RestoreItem(item)
		}
	case IntentDeleteAllArchived:
		c.DeleteAllArchived()
	case IntentSetSearchQuery:
		c.SetSearchQuery(in.Query)
	case IntentSetSelectedPriority:
		c.SetSelectedPriority(in.Priority)
	case IntentSetSelectedCategory:
		c.SetSelectedCategory(in.Category)
	case IntentClearError:
		c.ClearError()
	default:
		return badIntent("unknown type %q", in.Type)
	}
	return nil
}
