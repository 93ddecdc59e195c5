package model

import (
	"encoding/json"
	"fmt"
)

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type SearchRequest struct {
	BaseDN     string   `json:"baseDN"`
	Filter     string   `json:"filter"`
	Scope      string   `json:"scope"`
	Attributes []string `json:"attributes"`
	Page       int      `json:"page"`
	PageSize   int      `json:"pageSize"`
}

type CreateUserRequest struct {
	CN           string `json:"cn"`
	SN           string `json:"sn"`
	Mail         string `json:"mail"`
	UID          string `json:"uid"`
	UserPassword string `json:"userPassword"`
	OU           string `json:"ou"`
}

type UpdateUserRequest struct {
	CN   string `json:"cn"`
	SN   string `json:"sn"`
	Mail string `json:"mail"`
	OU   string `json:"ou"`
}

type CreateGroupRequest struct {
	CN          string   `json:"cn"`
	Description string   `json:"description"`
	Members     []string `json:"members"`
}

// UpdateGroupRequest uses pointers so that an omitted field is left untouched while an
// explicit value (even empty) replaces the attribute.
type UpdateGroupRequest struct {
	Description *string       `json:"description"`
	Members     *StringOrList `json:"members"`
	Owner       *string       `json:"owner"`
}

// StringOrList decodes either a JSON string or an array of strings.
type StringOrList []string

func (s *StringOrList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*s = StringOrList{single}
		return nil
	}

	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("expected string or list of strings: %w", err)
	}

	*s = list
	return nil
}

type CreateOURequest struct {
	OU          string `json:"ou"`
	Description string `json:"description"`
	ParentDN    string `json:"parentDN"`
}

type MutationResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	DN      string `json:"dn,omitempty"`
}
