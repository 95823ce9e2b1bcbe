package xhs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tidwall/gjson"

	"github.com/ternarybob/redbook/internal/interfaces"
	"github.com/ternarybob/redbook/internal/models"
	"github.com/ternarybob/redbook/internal/services/browser"
	"github.com/ternarybob/redbook/internal/services/initialstate"
)

// UserProfile returns a user's basic info, interaction counts and notes
func (s *Service) UserProfile(ctx context.Context, userID, xsecToken string) (*models.UserProfile, error) {
	var profile *models.UserProfile
	err := s.manager.Run(ctx, "user_profile", func(ctx context.Context, session *browser.Session) error {
		var err error
		profile, err = s.userProfilePage(ctx, session.Page, userID, xsecToken)
		return err
	})
	return profile, err
}

func (s *Service) userProfilePage(ctx context.Context, page interfaces.Page, userID, xsecToken string) (*models.UserProfile, error) {
	if err := page.Navigate(ctx, UserProfileURL(userID, xsecToken)); err != nil {
		return nil, err
	}
	if err := s.pause(ctx, time.Second); err != nil {
		return nil, err
	}

	pageData, err := initialstate.ReadPath(ctx, page, initialstate.Path{"user", "userPageData"}, s.stateTimeout())
	if err != nil {
		return nil, err
	}
	notes, err := initialstate.ReadPath(ctx, page, initialstate.Path{"user", "notes"}, s.stateTimeout())
	if err != nil {
		return nil, err
	}
	return buildUserProfile(pageData, notes)
}

// buildUserProfile unwraps the profile refs and flattens the per-tab note lists
func buildUserProfile(pageData, notes json.RawMessage) (*models.UserProfile, error) {
	basic := unwrapRef(pageData)
	if initialstate.IsNull(basic) {
		return nil, fmt.Errorf("%w: user.userPageData.value not found in __INITIAL_STATE__", initialstate.ErrNotFound)
	}
	notesData := unwrapRef(notes)
	if initialstate.IsNull(notesData) {
		return nil, fmt.Errorf("%w: user.notes.value not found in __INITIAL_STATE__", initialstate.ErrNotFound)
	}

	profile := &models.UserProfile{
		UserBasicInfo: firstRaw(basic, json.RawMessage(basic), "basicInfo", "BasicInfo"),
		Interactions:  firstRaw(basic, json.RawMessage("[]"), "interactions", "Interactions"),
		Feeds:         []json.RawMessage{},
	}

	gjson.ParseBytes(notesData).ForEach(func(_, tab gjson.Result) bool {
		if !tab.IsArray() {
			return true
		}
		for _, note := range tab.Array() {
			profile.Feeds = append(profile.Feeds, json.RawMessage(note.Raw))
		}
		return true
	})
	return profile, nil
}

// unwrapRef unwraps a ref and reports a ref holding null as null
func unwrapRef(raw json.RawMessage) json.RawMessage {
	inner := initialstate.Unwrap(raw)
	root := gjson.ParseBytes(inner)
	if root.IsObject() {
		if v := root.Get("value"); v.Exists() && v.Type == gjson.Null {
			return nil
		}
	}
	return inner
}

// firstRaw returns the first non-null key of obj, or fallback
func firstRaw(obj json.RawMessage, fallback json.RawMessage, keys ...string) json.RawMessage {
	root := gjson.ParseBytes(obj)
	for _, key := range keys {
		if v := root.Get(key); v.Exists() && v.Type != gjson.Null {
			return json.RawMessage(v.Raw)
		}
	}
	return fallback
}
