package browser

// convertDeferredImagesJS rewrites every image carrying a deferred source
// attribute to its real source, skipping known placeholder URLs, and
// returns the number of conversions.
const convertDeferredImagesJS = `() => {
	const images = document.querySelectorAll('img[data-src]');
	let converted = 0;
	images.forEach((img) => {
		const dataSrc = img.getAttribute('data-src');
		if (dataSrc && !dataSrc.includes('noimage') && !dataSrc.includes('loading.gif')) {
			img.src = dataSrc;
			converted++;
		}
	});
	return converted;
}`

// autoScrollJS scrolls to the bottom, the middle, and back to the top to
// trigger intersection-observer based loaders.
const autoScrollJS = `() => {
	return new Promise((resolve) => {
		window.scrollTo(0, document.body.scrollHeight);
		setTimeout(() => {
			window.scrollTo(0, document.body.scrollHeight / 2);
			setTimeout(() => {
				window.scrollTo(0, 0);
				resolve();
			}, 200);
		}, 200);
	});
}`

// imageLoadRatioJS reports the fraction of images that finished loading a
// real (non-placeholder) source.
const imageLoadRatioJS = `() => {
	const images = document.querySelectorAll('img');
	if (images.length === 0) {
		return 1.0;
	}
	let loaded = 0;
	images.forEach((img) => {
		const src = img.src || '';
		if (img.complete && src !== '' && !src.includes('noimage') && !src.includes('loading.gif')) {
			loaded++;
		}
	});
	return loaded / images.length;
}`
