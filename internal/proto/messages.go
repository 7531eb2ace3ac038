package proto

import (
	"google.golang.org/protobuf/types/known/structpb"
)

type RegisterRequest struct {
	Login       string
	DisplayName string
	Password    string
}

func (m RegisterRequest) Struct() *structpb.Struct {
	return fields(map[string]*structpb.Value{
		"login":        structpb.NewStringValue(m.Login),
		"display_name": structpb.NewStringValue(m.DisplayName),
		"password":     structpb.NewStringValue(m.Password),
	})
}

func RegisterRequestFrom(s *structpb.Struct) RegisterRequest {
	return RegisterRequest{Login: str(s, "login"), DisplayName: str(s, "display_name"), Password: str(s, "password")}
}

type RegisterResponse struct {
	SubjectID string
}

func (m RegisterResponse) Struct() *structpb.Struct {
	return fields(map[string]*structpb.Value{"subject_id": structpb.NewStringValue(m.SubjectID)})
}

func RegisterResponseFrom(s *structpb.Struct) RegisterResponse {
	return RegisterResponse{SubjectID: str(s, "subject_id")}
}

type LoginRequest struct {
	Login    string
	Password string
}

func (m LoginRequest) Struct() *structpb.Struct {
	return fields(map[string]*structpb.Value{
		"login":    structpb.NewStringValue(m.Login),
		"password": structpb.NewStringValue(m.Password),
	})
}

func LoginRequestFrom(s *structpb.Struct) LoginRequest {
	return LoginRequest{Login: str(s, "login"), Password: str(s, "password")}
}

// RefreshTokenRequest is the payload of both Refresh and Revoke.
type RefreshTokenRequest struct {
	RefreshToken string
}

func (m RefreshTokenRequest) Struct() *structpb.Struct {
	return fields(map[string]*structpb.Value{"refresh_token": structpb.NewStringValue(m.RefreshToken)})
}

func RefreshTokenRequestFrom(s *structpb.Struct) RefreshTokenRequest {
	return RefreshTokenRequest{RefreshToken: str(s, "refresh_token")}
}

// TokenResponse answers Login and Refresh.
type TokenResponse struct {
	AccessToken      string
	RefreshToken     string
	ExpiresInSeconds int64
}

func (m TokenResponse) Struct() *structpb.Struct {
	return fields(map[string]*structpb.Value{
		"access_token":       structpb.NewStringValue(m.AccessToken),
		"refresh_token":      structpb.NewStringValue(m.RefreshToken),
		"expires_in_seconds": structpb.NewNumberValue(float64(m.ExpiresInSeconds)),
	})
}

func TokenResponseFrom(s *structpb.Struct) TokenResponse {
	return TokenResponse{
		AccessToken:      str(s, "access_token"),
		RefreshToken:     str(s, "refresh_token"),
		ExpiresInSeconds: int64(s.GetFields()["expires_in_seconds"].GetNumberValue()),
	}
}

type WhoAmIResponse struct {
	SubjectID string
	Name      string
	Roles     []string
	ExpiresAt string
}

func (m WhoAmIResponse) Struct() *structpb.Struct {
	roles := make([]*structpb.Value, 0, len(m.Roles))
	for _, r := range m.Roles {
		roles = append(roles, structpb.NewStringValue(r))
	}
	return fields(map[string]*structpb.Value{
		"subject_id": structpb.NewStringValue(m.SubjectID),
		"name":       structpb.NewStringValue(m.Name),
		"roles":      structpb.NewListValue(&structpb.ListValue{Values: roles}),
		"expires_at": structpb.NewStringValue(m.ExpiresAt),
	})
}

func WhoAmIResponseFrom(s *structpb.Struct) WhoAmIResponse {
	resp := WhoAmIResponse{SubjectID: str(s, "subject_id"), Name: str(s, "name"), ExpiresAt: str(s, "expires_at"), Roles: []string{}}
	for _, v := range s.GetFields()["roles"].GetListValue().GetValues() {
		resp.Roles = append(resp.Roles, v.GetStringValue())
	}
	return resp
}

type PingResponse struct {
	Status string
}

func (m PingResponse) Struct() *structpb.Struct {
	return fields(map[string]*structpb.Value{"status": structpb.NewStringValue(m.Status)})
}

func PingResponseFrom(s *structpb.Struct) PingResponse {
	return PingResponse{Status: str(s, "status")}
}

// Empty is the payload of calls without arguments or results.
func Empty() *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{}}
}

func fields(f map[string]*structpb.Value) *structpb.Struct {
	return &structpb.Struct{Fields: f}
}

// str reads a string field; missing or non-string fields read as "".
func str(s *structpb.Struct, key string) string {
	return s.GetFields()[key].GetStringValue()
}
