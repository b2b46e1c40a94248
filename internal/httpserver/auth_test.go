package httpserver

import (
	"net/http"
	"testing"
)

func TestSignupLoginLogout(t *testing.T) {
	env := newTestEnv(t)
	client := newClient(t)

	creds := map[string]string{"Username": "mario", "Password": "password123"}
	if code := doJSON(t, client, http.MethodPost, env.ts.URL+"/auth/signup", creds, nil); code != http.StatusOK {
		t.Fatalf("signup = %d", code)
	}
	if code := doJSON(t, client, http.MethodPost, env.ts.URL+"/auth/signup", creds, nil); code != http.StatusConflict {
		t.Fatal("duplicate username accepted")
	}

	var me map[string]any
	if code := doJSON(t, client, http.MethodGet, env.ts.URL+"/auth/me", nil, &me); code != http.StatusOK {
		t.Fatalf("me = %d", code)
	}
	if me["username"] != "mario" {
		t.Fatalf("me = %v", me)
	}

	if code := doJSON(t, client, http.MethodPost, env.ts.URL+"/auth/logout", nil, nil); code != http.StatusOK {
		t.Fatal("logout failed")
	}
	if code := doJSON(t, client, http.MethodGet, env.ts.URL+"/auth/me", nil, nil); code != http.StatusUnauthorized {
		t.Fatal("me after logout should 401")
	}

	if code := doJSON(t, client, http.MethodPost, env.ts.URL+"/auth/login", map[string]string{"Username": "mario", "Password": "wrong-password"}, nil); code != http.StatusUnauthorized {
		t.Fatal("wrong password accepted")
	}
	if code := doJSON(t, client, http.MethodPost, env.ts.URL+"/auth/login", creds, nil); code != http.StatusOK {
		t.Fatal("login failed")
	}
	if code := doJSON(t, client, http.MethodGet, env.ts.URL+"/auth/me", nil, &me); code != http.StatusOK {
		t.Fatal("me after login failed")
	}
}

func TestSignupValidation(t *testing.T) {
	env := newTestEnv(t)
	client := newClient(t)

	cases := []map[string]string{
		{"Username": "ab", "Password": "password123"},     // username too short
		{"Username": "mario", "Password": "short"},        // password too short
		{"Username": "màrio!", "Password": "password123"}, // bad characters
	}
	for _, c := range cases {
		if code := doJSON(t, client, http.MethodPost, env.ts.URL+"/auth/signup", c, nil); code != http.StatusBadRequest {
			t.Fatalf("signup %v = %d", c, code)
		}
	}
}

func TestAnonymousAccount(t *testing.T) {
	env := newTestEnv(t)
	client := newClient(t)

	var out map[string]any
	if code := doJSON(t, client, http.MethodPost, env.ts.URL+"/auth/anonymous", nil, &out); code != http.StatusOK {
		t.Fatalf("anonymous = %d", code)
	}
	var me map[string]any
	if code := doJSON(t, client, http.MethodGet, env.ts.URL+"/auth/me", nil, &me); code != http.StatusOK {
		t.Fatalf("me = %d", code)
	}
	if me["anonymous"] != true {
		t.Fatalf("me = %v", me)
	}
	if me["id"] != out["id"] {
		t.Fatalf("id mismatch: %v vs %v", me["id"], out["id"])
	}
}

func TestOAuthSignInGrantsBonusOnce(t *testing.T) {
	env := newTestEnv(t)
	client := newClient(t)

	var start map[string]string
	if code := doJSON(t, client, http.MethodGet, env.ts.URL+"/auth/oauth/google/start", nil, &start); code != http.StatusOK {
		t.Fatalf("oauth start = %d", code)
	}
	cb := map[string]string{"state": start["state"], "subject": "google-sub-1"}
	var signedIn map[string]any
	if code := doJSON(t, client, http.MethodPost, env.ts.URL+"/auth/oauth/google/callback", cb, &signedIn); code != http.StatusOK {
		t.Fatalf("oauth callback = %d", code)
	}

	var snap snapRes
	if code := doJSON(t, client, http.MethodGet, env.ts.URL+"/game/state", nil, &snap); code != http.StatusOK {
		t.Fatal("state failed")
	}
	if snap.Progression.Coins != env.cfg.BonusCoins || !snap.Bonus {
		t.Fatalf("bonus not granted: coins=%d granted=%v", snap.Progression.Coins, snap.Bonus)
	}

	// Second sign-in with the same subject reuses the account, no new bonus.
	if code := doJSON(t, client, http.MethodGet, env.ts.URL+"/auth/oauth/google/start", nil, &start); code != http.StatusOK {
		t.Fatal("second start failed")
	}
	cb["state"] = start["state"]
	var again map[string]any
	if code := doJSON(t, client, http.MethodPost, env.ts.URL+"/auth/oauth/google/callback", cb, &again); code != http.StatusOK {
		t.Fatal("second callback failed")
	}
	if again["id"] != signedIn["id"] {
		t.Fatalf("new account created: %v vs %v", again["id"], signedIn["id"])
	}
	if code := doJSON(t, client, http.MethodGet, env.ts.URL+"/game/state", nil, &snap); code != http.StatusOK {
		t.Fatal("state failed")
	}
	if snap.Progression.Coins != env.cfg.BonusCoins {
		t.Fatalf("bonus granted twice: coins=%d", snap.Progression.Coins)
	}
}

func TestOAuthStateMismatch(t *testing.T) {
	env := newTestEnv(t)
	client := newClient(t)

	if code := doJSON(t, client, http.MethodGet, env.ts.URL+"/auth/oauth/google/start", nil, nil); code != http.StatusOK {
		t.Fatal("start failed")
	}
	cb := map[string]string{"state": "forged", "subject": "google-sub-2"}
	if code := doJSON(t, client, http.MethodPost, env.ts.URL+"/auth/oauth/google/callback", cb, nil); code != http.StatusUnauthorized {
		t.Fatal("forged state accepted")
	}
}

func TestLinkProviderBonus(t *testing.T) {
	env := newTestEnv(t)
	client := newClient(t)

	if code := doJSON(t, client, http.MethodPost, env.ts.URL+"/auth/signup", map[string]string{"Username": "giulia", "Password": "password123"}, nil); code != http.StatusOK {
		t.Fatal("signup failed")
	}

	link := map[string]string{"provider": "google", "subject": "google-sub-3"}
	if code := doJSON(t, client, http.MethodPost, env.ts.URL+"/auth/link", link, nil); code != http.StatusOK {
		t.Fatalf("link failed")
	}
	if code := doJSON(t, client, http.MethodPost, env.ts.URL+"/auth/link", link, nil); code != http.StatusConflict {
		t.Fatal("double link accepted")
	}

	var snap snapRes
	if code := doJSON(t, client, http.MethodGet, env.ts.URL+"/game/state", nil, &snap); code != http.StatusOK {
		t.Fatal("state failed")
	}
	if snap.Progression.Coins != env.cfg.BonusCoins || !snap.Bonus {
		t.Fatalf("link bonus missing: coins=%d granted=%v", snap.Progression.Coins, snap.Bonus)
	}

	// A non-bonus provider links fine but pays nothing.
	if code := doJSON(t, client, http.MethodPost, env.ts.URL+"/auth/link", map[string]string{"provider": "github", "subject": "gh-1"}, nil); code != http.StatusOK {
		t.Fatal("github link failed")
	}
	if code := doJSON(t, client, http.MethodGet, env.ts.URL+"/game/state", nil, &snap); code != http.StatusOK {
		t.Fatal("state failed")
	}
	if snap.Progression.Coins != env.cfg.BonusCoins {
		t.Fatalf("non-bonus provider paid coins: %d", snap.Progression.Coins)
	}
}
