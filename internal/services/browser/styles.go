package browser

// printCSS is injected before PDF generation. It forces color preservation,
// hides fixed chrome and overlays, wraps overflow-prone elements, and
// normalizes footnote markers so print pagination stays readable.
const printCSS = `
* {
	-webkit-print-color-adjust: exact !important;
	print-color-adjust: exact !important;
}

header, nav, footer, aside,
[class*="header"], [class*="navbar"], [class*="nav-bar"],
[class*="footer"], [class*="sidebar"], [class*="side-bar"],
[class*="sticky"], [class*="fixed-top"], [class*="banner"],
[style*="position: fixed"], [style*="position:fixed"],
[style*="position: sticky"], [style*="position:sticky"] {
	display: none !important;
}

pre, code, table, blockquote {
	white-space: pre-wrap !important;
	word-break: break-word !important;
	overflow-wrap: anywhere !important;
	max-width: 100% !important;
}

img, video, svg, iframe {
	max-width: 100% !important;
}

sup, sub {
	vertical-align: baseline !important;
	font-size: 0.75em !important;
	position: static !important;
}

[role="tooltip"], [class*="footnote-tooltip"], [class*="tooltip"] {
	display: none !important;
}

[role="dialog"], [aria-modal="true"], dialog,
[class*="modal"], [class*="overlay"], [class*="popup"],
[class*="consent"], [class*="cookie-banner"] {
	display: none !important;
}
`

// privacyFilterJS hides the nearest block-level ancestor of any text node
// containing one of the filter terms, unless that ancestor is a known content
// container. Terms arrive lowercased and JSON-encoded.
const privacyFilterJS = `
(function(terms) {
	if (!terms.length) return 0;
	var contentIds = ['content', 'main', 'article', 'post', 'story', 'body'];
	function isContentContainer(el) {
		var id = ((el.id || '') + ' ' + (el.className || '')).toLowerCase();
		return contentIds.some(function(c) { return id.indexOf(c) !== -1; });
	}
	function isBlockLevel(el) {
		var tags = ['DIV','SPAN','P','LI','A','SECTION','ARTICLE','ASIDE'];
		if (tags.indexOf(el.tagName) !== -1) return true;
		var display = window.getComputedStyle(el).display;
		return display === 'block' || display === 'flex' || display === 'grid';
	}
	var walker = document.createTreeWalker(document.body, NodeFilter.SHOW_TEXT);
	var hidden = 0;
	var node;
	while ((node = walker.nextNode())) {
		var text = node.textContent.toLowerCase();
		if (!terms.some(function(t) { return text.indexOf(t) !== -1; })) continue;
		var el = node.parentElement;
		while (el && el !== document.body) {
			if (isBlockLevel(el) && !isContentContainer(el)) {
				el.style.display = 'none';
				hidden++;
				break;
			}
			el = el.parentElement;
		}
	}
	return hidden;
})
`

// scrollJS performs the bounded lazy-load scroll: up to 50 steps of 1000px at
// 50ms, capped at 10 seconds, then returns to the top.
const scrollJS = `
(async function() {
	var deadline = Date.now() + 10000;
	for (var i = 0; i < 50; i++) {
		if (Date.now() > deadline) break;
		var before = window.scrollY;
		window.scrollBy(0, 1000);
		await new Promise(function(r) { setTimeout(r, 50); });
		if (window.scrollY === before) break;
	}
	window.scrollTo(0, 0);
	return true;
})()
`

// titleJS extracts the document title with known site suffixes trimmed
const titleJS = `
(function() {
	var title = document.title || '';
	var suffixes = [' | Substack', ' - YouTube', ' | Hacker News', ' - The New York Times', ' | The Guardian'];
	for (var i = 0; i < suffixes.length; i++) {
		if (title.endsWith(suffixes[i])) {
			title = title.slice(0, -suffixes[i].length);
			break;
		}
	}
	return title.trim();
})()
`

// articleStubJS checks whether the mirror rendered an unsupported article
// stub instead of the post content
const articleStubJS = `
(function(marker) {
	var body = document.body ? document.body.innerHTML : '';
	return body.indexOf(marker) !== -1;
})
`
