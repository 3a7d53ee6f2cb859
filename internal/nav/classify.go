package nav

// classifyTransition maps a raw transition type to a navigation type and the
// default open target.
func classifyTransition(transition string) (NavigationType, OpenTarget) {
	switch transition {
	case "reload":
		return NavReload, OpenSameTab
	case "link":
		return NavLinkClick, OpenSameTab
	case "form_submit":
		return NavFormSubmit, OpenSameTab
	case "typed":
		return NavAddressBar, OpenSameTab
	case "auto_bookmark":
		return NavLinkClick, OpenSameTab
	case "generated", "auto_subframe":
		return NavJavascript, OpenSameTab
	case "manual_subframe":
		return NavLinkClick, OpenFrame
	case "start_page":
		return NavInitial, OpenSameTab
	default:
		return NavInitial, OpenSameTab
	}
}

// applyQualifiers overrides the base classification from transition
// qualifiers, in precedence order: history traversal, then address bar, then
// redirect.
func applyQualifiers(base NavigationType, qualifiers []string) NavigationType {
	has := func(q string) bool {
		for _, s := range qualifiers {
			if s == q {
				return true
			}
		}
		return false
	}
	switch {
	case has("forward_back"):
		if has("forward") {
			return NavHistoryForward
		}
		return NavHistoryBack
	case has("from_address_bar"):
		return NavAddressBar
	case has("client_redirect"), has("server_redirect"):
		return NavRedirect
	}
	return base
}

// classifyOpenTarget refines the open target from the reported window
// disposition. Detection of API-originated opens is a narrow heuristic: only
// what the event explicitly reports is trusted.
func classifyOpenTarget(base OpenTarget, disposition string) OpenTarget {
	switch disposition {
	case "new_popup":
		return OpenPopup
	case "new_window", "new_foreground_tab", "new_background_tab":
		return OpenNewTab
	}
	return base
}
