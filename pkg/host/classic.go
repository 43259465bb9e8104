// Package host holds what the browser hosts share.
package host

// ClassicScript is a JavaScript function that runs its code argument as a
// classic <script> in the calling frame's main world, so top-level
// declarations stay visible to later scripts of the same frame. An exception
// thrown by the code is rethrown to the caller. The completion value is not
// observable and the function returns undefined.
const ClassicScript = `code => {
  let failure = null;
  const onError = event => {
    failure = event.error !== undefined ? event.error : new Error(event.message);
    event.preventDefault();
  };
  const script = document.createElement("script");
  script.textContent = code;
  window.addEventListener("error", onError);
  try {
    (document.head || document.documentElement).appendChild(script);
  } finally {
    window.removeEventListener("error", onError);
    script.remove();
  }
  if (failure !== null) {
    throw failure;
  }
}`
