package browser

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Every script returns a value: chromedp refuses to decode undefined.

const observersVar = "window.__listingDistanceObservers"

// waitScript resolves immediately (true) when the selector matches, otherwise
// installs a one-shot observer that reports through the binding and returns false.
const waitScript = `(function(sel, token, binding) {
	if (document.querySelector(sel)) return true;
	const registry = ` + observersVar + ` = ` + observersVar + ` || {};
	const obs = new MutationObserver(function() {
		if (!document.querySelector(sel)) return;
		obs.disconnect();
		delete registry[token];
		window[binding](JSON.stringify({token: token}));
	});
	obs.observe(document.documentElement, {childList: true, subtree: true});
	registry[token] = obs;
	return false;
})`

const watchScript = `(function(sel, token, binding) {
	const el = document.querySelector(sel);
	if (!el) return false;
	const registry = ` + observersVar + ` = ` + observersVar + ` || {};
	const obs = new MutationObserver(function() {
		window[binding](JSON.stringify({token: token}));
	});
	obs.observe(el, {childList: true, subtree: true});
	registry[token] = obs;
	return true;
})`

const disconnectScript = `(function(token) {
	const registry = ` + observersVar + ` || {};
	const obs = registry[token];
	if (!obs) return false;
	obs.disconnect();
	delete registry[token];
	return true;
})`

const stylesScript = `(function(id, css) {
	if (document.getElementById(id)) return false;
	const style = document.createElement('style');
	style.id = id;
	style.textContent = css;
	(document.head || document.documentElement).appendChild(style);
	return true;
})`

const cardsScript = `(function(card, link, priceRow, idAttr) {
	return Array.from(document.querySelectorAll(card)).map(function(a) {
		const l = a.querySelector(link);
		return {
			elementId: a.getAttribute(idAttr) || '',
			href: l ? (l.getAttribute('href') || '') : '',
			linkText: l ? l.textContent : '',
			linkTitle: l ? (l.getAttribute('title') || '') : '',
			hasLink: !!l,
			hasPriceRow: !!a.querySelector(priceRow)
		};
	});
})`

// renderCardScript finds the card by the same key as page.Card.Key and
// upserts its badge. Returns "ok", "no-card" or "no-price-row".
const renderCardScript = `(function(card, link, priceRow, idAttr, badgeClass, key, html) {
	const cards = document.querySelectorAll(card);
	for (const a of cards) {
		const l = a.querySelector(link);
		const id = (a.getAttribute(idAttr) || '').trim();
		const k = id || (l ? (l.getAttribute('href') || '').trim() : '');
		if (k !== key) continue;
		let badge = a.querySelector('div.' + badgeClass);
		if (badge) {
			badge.innerHTML = html;
			return 'ok';
		}
		const row = a.querySelector(priceRow);
		if (!row) return 'no-price-row';
		badge = document.createElement('div');
		badge.className = badgeClass;
		badge.innerHTML = html;
		row.parentNode.insertBefore(badge, row);
		return 'ok';
	}
	return 'no-card';
})`

const detailFieldsScript = `(function(header, title, subtitle) {
	const text = function(el) { return el ? el.textContent.trim() : ''; };
	return {
		headerFragments: Array.from(document.querySelectorAll(header)).map(text),
		title: text(document.querySelector(title)),
		subtitle: text(document.querySelector(subtitle))
	};
})`

const renderDetailScript = `(function(anchor, badgeClass, html) {
	let badge = document.querySelector('div.' + badgeClass);
	if (badge) {
		badge.innerHTML = html;
		return true;
	}
	const a = document.querySelector(anchor);
	if (!a) return false;
	badge = document.createElement('div');
	badge.className = badgeClass;
	badge.innerHTML = html;
	a.parentNode.insertBefore(badge, a);
	return true;
})`

const clearBadgesScript = `(function(listingClass, detailClass) {
	const nodes = document.querySelectorAll('.' + listingClass + ', .' + detailClass);
	nodes.forEach(function(n) { n.remove(); });
	return nodes.length;
})`

// call renders an invocation of fn with JSON-encoded arguments.
func call(fn string, args ...any) (string, error) {
	encoded := make([]string, 0, len(args))
	for i, a := range args {
		b, err := json.Marshal(a)
		if err != nil {
			return "", fmt.Errorf("encode script argument #%d: %w", i+1, err)
		}
		encoded = append(encoded, string(b))
	}
	return fn + "(" + strings.Join(encoded, ", ") + ")", nil
}
