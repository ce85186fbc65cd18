// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package throttle

// Allow checks (category, identifier) and returns a *LimitError when the
// request is denied.
func (t *Throttle) Allow(category Category, identifier string) error {
	d := t.Check(category, identifier)
	if !d.Allowed {
		return NewLimitError(d)
	}
	return nil
}

// Login guards sign-in attempts.
func (t *Throttle) Login(identifier string) error {
	return t.Allow(CategoryLogin, identifier)
}

// Signup guards account creation.
func (t *Throttle) Signup(identifier string) error {
	return t.Allow(CategorySignup, identifier)
}

// PasswordReset guards password reset emails.
func (t *Throttle) PasswordReset(identifier string) error {
	return t.Allow(CategoryPasswordReset, identifier)
}

// Vote guards queue votes.
func (t *Throttle) Vote(identifier string) error {
	return t.Allow(CategoryVote, identifier)
}

// RequestSong guards song requests.
func (t *Throttle) RequestSong(identifier string) error {
	return t.Allow(CategoryRequestSong, identifier)
}

// SendMessage guards direct messages.
func (t *Throttle) SendMessage(identifier string) error {
	return t.Allow(CategorySendMessage, identifier)
}

// Payment guards payment initiation.
func (t *Throttle) Payment(identifier string) error {
	return t.Allow(CategoryPayments, identifier)
}

// GoldenBoost guards Golden Boost purchases.
func (t *Throttle) GoldenBoost(identifier string) error {
	return t.Allow(CategoryGoldenBoost, identifier)
}

// Chat guards session chat messages.
func (t *Throttle) Chat(identifier string) error {
	return t.Allow(CategoryChat, identifier)
}

// Reaction guards reactions.
func (t *Throttle) Reaction(identifier string) error {
	return t.Allow(CategoryReactions, identifier)
}

// API guards generic API calls.
func (t *Throttle) API(identifier string) error {
	return t.Allow(CategoryAPI, identifier)
}
