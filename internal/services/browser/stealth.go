package browser

// StealthVersion identifies the current set of fingerprint tweaks; bump it when StealthScripts changes
const StealthVersion = 2

// StealthScripts are installed in every context before any page script runs.
// They lower obvious automation signals only; detection is still possible.
var StealthScripts = []string{
	// navigator.webdriver
	`Object.defineProperty(navigator, 'webdriver', { get: () => undefined, configurable: true });`,

	// navigator.plugins
	`Object.defineProperty(navigator, 'plugins', {
		get: () => {
			const plugins = [
				{ name: 'Chrome PDF Plugin', filename: 'internal-pdf-viewer' },
				{ name: 'Chrome PDF Viewer', filename: 'mhjfbmdgcfjbbpaeojofohoefgiehjai' },
				{ name: 'Native Client', filename: 'internal-nacl-plugin' }
			];
			plugins.length = 3;
			return plugins;
		},
		configurable: true
	});`,

	// navigator.languages
	`Object.defineProperty(navigator, 'languages', { get: () => ['zh-CN', 'zh', 'en'], configurable: true });`,

	// chrome.runtime
	`if (!window.chrome) window.chrome = {};
	if (!window.chrome.runtime) window.chrome.runtime = { id: undefined };`,

	// permissions.query
	`(function () {
		if (!window.navigator.permissions) return;
		const originalQuery = window.navigator.permissions.query;
		window.navigator.permissions.query = (parameters) => (
			parameters.name === 'notifications' ?
				Promise.resolve({ state: Notification.permission }) :
				originalQuery.call(window.navigator.permissions, parameters)
		);
	})();`,
}
