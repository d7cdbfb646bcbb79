package surface

import (
	"encoding/json"
	"fmt"
)

// Scripts are self-invoking and exception-guarded: a page that breaks inside
// a handler must never surface an error on the native side.

// jsString renders v as a JS expression via JSON. Marshal failure degrades
// to null, keeping injection best-effort.
func jsString(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}

// BootstrapScript installs the posting shim and the COOP bridge object
// before any page script runs. __appShellPost forwards to whatever messaging
// host the surface exposes; AppInterfaceForCoop exists even for pages that
// never use COOP so onmessage assignment cannot throw.
func BootstrapScript() string {
	return `(function(){try{if(typeof window.__appShellPost!=='function'){window.__appShellPost=function(m){try{if(window.AppShell&&typeof window.AppShell.postMessage==='function'){window.AppShell.postMessage(m);}}catch(e){}};}if(!window.AppInterfaceForCoop){window.AppInterfaceForCoop={};}}catch(e){}})();`
}

// CallbackScript invokes a well-known response global with a payload object,
// skipping silently when the page never defined it.
func CallbackScript(global string, payload any) string {
	return fmt.Sprintf(
		`(function(){try{if(typeof window.%s==='function'){window.%s(%s);}}catch(e){}})();`,
		global, global, jsString(payload))
}

// PushHandlerScript delivers a push payload to window.pushTypeHandler.
func PushHandlerScript(payload any) string {
	return fmt.Sprintf(
		`(function(){try{if(typeof window.pushTypeHandler==='function'){window.pushTypeHandler(%s);}}catch(e){}})();`,
		jsString(payload))
}

// DeeplinkScript delivers a deep-link payload to window.handleDeeplink,
// retrying up to three times at 300ms intervals in case the page defines the
// handler after load.
func DeeplinkScript(payload string) string {
	return fmt.Sprintf(
		`(function(){try{var v=%s;var __t=0;function __call(){try{if(typeof window.handleDeeplink==='function'){window.handleDeeplink(v);}else if(++__t<3){setTimeout(__call,300);}}catch(e){}}__call();}catch(e){}})();`,
		jsString(payload))
}

// DeeplinkFallbackScript installs a no-op handleDeeplink when the page has
// none, so late deliveries do not retry forever.
func DeeplinkFallbackScript() string {
	return `(function(){try{if(typeof window.handleDeeplink!=='function'){window.handleDeeplink=function(){};}}catch(e){}})();`
}

// CoopResponseScript hands a response envelope to AppInterfaceForCoop's
// onmessage, with the envelope JSON carried as the event's data string.
func CoopResponseScript(envelope any) string {
	env, err := json.Marshal(envelope)
	if err != nil {
		env = []byte("{}")
	}
	return fmt.Sprintf(
		`(function(){try{if(window.AppInterfaceForCoop&&typeof window.AppInterfaceForCoop.onmessage==='function'){window.AppInterfaceForCoop.onmessage({data:%s});}}catch(e){}})();`,
		jsString(string(env)))
}

// BackDecisionScript asks the page-defined decision function whether it
// handles a back press, posting the returned signal back over the bridge.
// Pages without the function post an empty signal, which means default back.
func BackDecisionScript() string {
	return `(function(){try{var ret='';if(typeof window.eventAppToCoop==='function'){ret=window.eventAppToCoop('HISTORY_BACK',null)||'';}window.__appShellPost(JSON.stringify({type:'APP_TO_COOP_EVENT_RESPONSE',ret:String(ret)}));}catch(e){try{window.__appShellPost(JSON.stringify({type:'APP_TO_COOP_EVENT_RESPONSE',ret:''}));}catch(_){}}})();`
}

// AlbumPhotoScript delivers a picked photo (or null on cancel/denial) to
// window.onAlbumPhoto.
func AlbumPhotoScript(photo any) string {
	return fmt.Sprintf(
		`(function(){try{if(typeof window.onAlbumPhoto==='function'){window.onAlbumPhoto(%s);}}catch(e){}})();`,
		jsString(photo))
}

// HistoryBackScript navigates the surface back through its own history.
func HistoryBackScript() string {
	return `(function(){try{history.back();}catch(e){}})();`
}

// NavigateScript performs an in-place navigation from inside the page.
func NavigateScript(target string) string {
	return fmt.Sprintf(`(function(){try{location.assign(%s);}catch(e){}})();`, jsString(target))
}
