package bot

import "sync"

// chatNavigator records where a screen asked to go. The handler follows the
// request once the screen operation returns, with the update's context.
type chatNavigator struct {
	mu          sync.Mutex
	toLogin     bool
	toDashboard bool
}

func (n *chatNavigator) ToLogin() {
	n.mu.Lock()
	n.toLogin = true
	n.mu.Unlock()
}

func (n *chatNavigator) ToDashboard() {
	n.mu.Lock()
	n.toDashboard = true
	n.mu.Unlock()
}

// take returns and clears the pending navigation. Login wins over dashboard.
func (n *chatNavigator) take() (login, dashboard bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	login, dashboard = n.toLogin, n.toDashboard && !n.toLogin
	n.toLogin, n.toDashboard = false, false
	return login, dashboard
}
