package oauth

import (
	"log/slog"
	"testing"
)

func TestClientStore_RegisterConfidential(t *testing.T) {
	store := NewClientStore(slog.Default())

	resp, err := store.RegisterClient(&ClientRegistrationRequest{
		RedirectURIs: []string{"http://localhost:8080/callback"},
		ClientName:   "Test Client",
	}, "192.0.2.1")
	if err != nil {
		t.Fatalf("RegisterClient() error = %v", err)
	}
	if resp.ClientSecret == "" {
		t.Fatal("ClientSecret should not be empty")
	}
	if !store.ValidateClientSecret(resp.ClientID, resp.ClientSecret) {
		t.Error("ValidateClientSecret() = false for the issued secret")
	}
	if store.ValidateClientSecret(resp.ClientID, "wrong") {
		t.Error("ValidateClientSecret() = true for a wrong secret")
	}
	if store.ValidateClientSecret("unknown", resp.ClientSecret) {
		t.Error("ValidateClientSecret() = true for an unknown client")
	}

	client, ok := store.GetClient(resp.ClientID)
	if !ok {
		t.Fatal("GetClient() did not find the client")
	}
	if client.ClientSecretHash == resp.ClientSecret {
		t.Error("secret must be stored hashed")
	}
}

func TestClientStore_GetClientReturnsCopy(t *testing.T) {
	store := NewClientStore(nil)
	resp, _ := store.RegisterClient(&ClientRegistrationRequest{
		RedirectURIs:            []string{"http://localhost/cb"},
		TokenEndpointAuthMethod: AuthMethodNone,
	}, "192.0.2.1")

	c, _ := store.GetClient(resp.ClientID)
	c.ClientName = "mutated"

	again, _ := store.GetClient(resp.ClientID)
	if again.ClientName == "mutated" {
		t.Error("GetClient() should return a copy")
	}
	if !again.IsPublic() {
		t.Error("client registered with auth method none should be public")
	}
}

func TestClientStore_CheckIPLimit(t *testing.T) {
	store := NewClientStore(nil)
	req := &ClientRegistrationRequest{RedirectURIs: []string{"http://localhost/cb"}, TokenEndpointAuthMethod: AuthMethodNone}

	for range 2 {
		if err := store.CheckIPLimit("192.0.2.1", 2); err != nil {
			t.Fatalf("CheckIPLimit() unexpected error = %v", err)
		}
		if _, err := store.RegisterClient(req, "192.0.2.1"); err != nil {
			t.Fatal(err)
		}
	}
	if err := store.CheckIPLimit("192.0.2.1", 2); err == nil {
		t.Error("CheckIPLimit() should fail after the limit is reached")
	}
	if err := store.CheckIPLimit("192.0.2.2", 2); err != nil {
		t.Errorf("other IP should not be limited: %v", err)
	}
	if err := store.CheckIPLimit("192.0.2.1", 0); err != nil {
		t.Errorf("zero limit means unlimited: %v", err)
	}
}
