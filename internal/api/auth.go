package api

import "context"

// Login exchanges credentials for a bearer token and the account profile.
// The token is installed on the client for subsequent requests.
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	in := map[string]string{"email": email, "password": password}
	var out AuthResponse
	if err := c.do(ctx, "POST", "/auth/login", in, &out); err != nil {
		return nil, err
	}
	c.token = out.Token
	return &out, nil
}

// Register creates an account and logs it in.
func (c *Client) Register(ctx context.Context, username, email, password, fullName string) (*AuthResponse, error) {
	in := map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	}
	if fullName != "" {
		in["full_name"] = fullName
	}
	var out AuthResponse
	if err := c.do(ctx, "POST", "/auth/register", in, &out); err != nil {
		return nil, err
	}
	c.token = out.Token
	return &out, nil
}

// Me returns the profile bound to the current token. A 401 here means the
// cached token expired and the user must log in again.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var out User
	if err := c.do(ctx, "GET", "/auth/me", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateProfile applies the non-nil fields and returns the updated profile.
func (c *Client) UpdateProfile(ctx context.Context, update ProfileUpdate) (*User, error) {
	var out User
	if err := c.do(ctx, "PUT", "/auth/profile", update, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
