package render

import (
	"fmt"
	"time"
)

// settleScriptTemplate is evaluated in the page after the markup is injected.
// It resolves once the document has been parsed and every image has either
// loaded, errored, or hit its individual ceiling. The gate is DOMContentLoaded
// rather than window load: the load event itself blocks on images, which would
// keep the ceilings from ever racing a stalled asset. The ceilings start as
// soon as parsing is done and run concurrently, so N stalled images cost at
// most one ceiling of wall time, and a broken image counts as settled instead
// of blocking the document. Resolves to the number of images that were still
// pending when the wait began.
const settleScriptTemplate = `(() => {
	const ceiling = %d;
	const settle = (img) => {
		if (img.complete) {
			return Promise.resolve();
		}
		return new Promise((resolve) => {
			const timer = setTimeout(resolve, ceiling);
			const done = () => { clearTimeout(timer); resolve(); };
			img.addEventListener('load', done, { once: true });
			img.addEventListener('error', done, { once: true });
		});
	};
	const parsed = document.readyState !== 'loading'
		? Promise.resolve()
		: new Promise((resolve) => document.addEventListener('DOMContentLoaded', resolve, { once: true }));
	return parsed.then(() => {
		const pending = Array.from(document.images).filter((img) => !img.complete).length;
		return Promise.all(Array.from(document.images, settle)).then(() => pending);
	});
})()`

// buildSettleScript renders the settle wait with the per-asset ceiling
func buildSettleScript(assetWait time.Duration) string {
	ms := assetWait.Milliseconds()
	if ms <= 0 {
		ms = defaultAssetWait.Milliseconds()
	}
	return fmt.Sprintf(settleScriptTemplate, ms)
}
